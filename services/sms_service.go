package services

import (
	"context"
	"fmt"
	"saathi/interfaces"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// twilioMessenger is the part of the Twilio REST API the gateway uses.
type twilioMessenger interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type TwilioSMSGateway struct {
	api        twilioMessenger
	fromNumber string
}

// NewTwilioSMSGateway returns an Unavailable gateway when any credential
// is missing.
func NewTwilioSMSGateway(accountSID, authToken, fromNumber string) *TwilioSMSGateway {
	if accountSID == "" || authToken == "" || fromNumber == "" {
		return &TwilioSMSGateway{}
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioSMSGateway{
		api:        client.Api,
		fromNumber: fromNumber,
	}
}

func (g *TwilioSMSGateway) Name() string {
	return "twilio"
}

func (g *TwilioSMSGateway) Availability() interfaces.Availability {
	if g.api == nil {
		return interfaces.Unavailable
	}
	return interfaces.Available
}

func (g *TwilioSMSGateway) SendSMS(ctx context.Context, to, body string) error {
	if g.api == nil {
		return fmt.Errorf("twilio gateway is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(g.fromNumber)
	params.SetBody(body)

	resp, err := g.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}

	if resp != nil && resp.Sid != nil {
		logrus.WithField("sid", *resp.Sid).Debug("SMS queued")
	}
	return nil
}
