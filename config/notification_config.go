package config

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// InitFirebaseMessaging returns nil when no credentials are configured;
// the push gateway then reports itself unavailable.
func InitFirebaseMessaging(ctx context.Context, cfg *Config) (*messaging.Client, error) {
	if cfg.FirebaseCredentials == "" {
		logrus.Warn("FIREBASE_CREDENTIALS not set, push notifications disabled")
		return nil, nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.FirebaseCredentials))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize FCM client: %w", err)
	}

	logrus.Info("Firebase messaging initialized")
	return client, nil
}

// HasTwilio reports whether SMS contact alerts can be sent.
func (c *Config) HasTwilio() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioPhoneNumber != ""
}

func (c *Config) HasSendGrid() bool {
	return c.SendGridAPIKey != "" && c.SendGridFromEmail != ""
}
