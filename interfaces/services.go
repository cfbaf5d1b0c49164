package interfaces

import (
	"context"
	"saathi/models"
)

// Availability is reported by every outbound collaborator. Callers check
// it before use instead of treating "not configured" as an error.
type Availability int

const (
	Available Availability = iota
	Unavailable
)

func (a Availability) String() string {
	if a == Available {
		return "available"
	}
	return "unavailable"
}

type Collaborator interface {
	Name() string
	Availability() Availability
}

type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// PushGateway delivers one message to one device address. Invalid or
// unregistered addresses yield (false, nil): a per-recipient failure, not
// an error of the gateway.
type PushGateway interface {
	Collaborator
	Send(ctx context.Context, address string, msg PushMessage) (delivered bool, err error)
}

type Geocoder interface {
	Collaborator
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

type SMSGateway interface {
	Collaborator
	SendSMS(ctx context.Context, to, body string) error
}

type EmailMessage struct {
	To        string
	ToName    string
	Subject   string
	PlainText string
	HTML      string
}

type EmailGateway interface {
	Collaborator
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// EventPublisher fans live updates out to subscribers of one event.
type EventPublisher interface {
	PublishToEvent(eventID string, update models.SOSUpdate)
}
