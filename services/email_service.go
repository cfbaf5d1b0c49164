package services

import (
	"context"
	"fmt"
	"saathi/interfaces"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGridEmailGateway struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
}

func NewSendGridEmailGateway(apiKey, fromName, fromEmail string) *SendGridEmailGateway {
	if apiKey == "" || fromEmail == "" {
		return &SendGridEmailGateway{}
	}

	return &SendGridEmailGateway{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (g *SendGridEmailGateway) Name() string {
	return "sendgrid"
}

func (g *SendGridEmailGateway) Availability() interfaces.Availability {
	if g.client == nil {
		return interfaces.Unavailable
	}
	return interfaces.Available
}

func (g *SendGridEmailGateway) SendEmail(ctx context.Context, msg interfaces.EmailMessage) error {
	if g.client == nil {
		return fmt.Errorf("sendgrid gateway is not configured")
	}

	toName := msg.ToName
	if toName == "" {
		toName = msg.To
	}

	from := mail.NewEmail(g.fromName, g.fromEmail)
	to := mail.NewEmail(toName, msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.PlainText, msg.HTML)

	response, err := g.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected email: status %d: %s", response.StatusCode, response.Body)
	}

	return nil
}
