package services

import (
	"context"
	"fmt"
	"saathi/interfaces"

	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
)

// fcmSender is the part of *messaging.Client the gateway uses.
type fcmSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMGateway delivers push messages through Firebase Cloud Messaging.
type FCMGateway struct {
	client fcmSender
}

// NewFCMGateway accepts a nil client; the gateway is then Unavailable.
func NewFCMGateway(client *messaging.Client) *FCMGateway {
	if client == nil {
		return &FCMGateway{}
	}
	return &FCMGateway{client: client}
}

func (g *FCMGateway) Name() string {
	return "fcm"
}

func (g *FCMGateway) Availability() interfaces.Availability {
	if g.client == nil {
		return interfaces.Unavailable
	}
	return interfaces.Available
}

func (g *FCMGateway) Send(ctx context.Context, address string, msg interfaces.PushMessage) (bool, error) {
	if g.client == nil {
		return false, fmt.Errorf("fcm gateway is not configured")
	}
	if address == "" {
		return false, nil
	}

	message := &messaging.Message{
		Token: address,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:     "default",
				Icon:      "ic_notification",
				Color:     "#D32F2F",
				ChannelID: "sos_alerts",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: msg.Title,
						Body:  msg.Body,
					},
					Sound: "default",
				},
			},
		},
	}

	if _, err := g.client.Send(ctx, message); err != nil {
		if messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err) {
			logrus.WithError(err).Debug("Push address rejected")
			return false, nil
		}
		return false, err
	}

	return true, nil
}
