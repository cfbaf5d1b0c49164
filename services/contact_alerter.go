package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"saathi/interfaces"
	"saathi/models"
	"saathi/utils"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const contactAlertTimeout = 30 * time.Second

// ContactAlerter tells a victim's own emergency contacts about an SOS by
// SMS and email. It is independent of the responder broadcast.
type ContactAlerter struct {
	sms   interfaces.SMSGateway
	email interfaces.EmailGateway

	wg sync.WaitGroup
}

func NewContactAlerter(sms interfaces.SMSGateway, email interfaces.EmailGateway) *ContactAlerter {
	return &ContactAlerter{
		sms:   sms,
		email: email,
	}
}

// Reachable counts contacts that at least one available channel can reach.
func (a *ContactAlerter) Reachable(contacts []models.EmergencyContact) int {
	smsOK := a.sms != nil && a.sms.Availability() == interfaces.Available
	emailOK := a.email != nil && a.email.Availability() == interfaces.Available

	count := 0
	for _, contact := range contacts {
		if (smsOK && contact.Phone != "") || (emailOK && contact.Email != "") {
			count++
		}
	}
	return count
}

// AlertTriggered sends the alerts in the background and returns the number
// of contacts that will be attempted.
func (a *ContactAlerter) AlertTriggered(event models.SOSEvent) int {
	reachable := a.Reachable(event.Contacts)
	if reachable == 0 {
		if len(event.Contacts) > 0 {
			logrus.WithField("sos_id", event.ID).Warn("No contact alert channel available")
		}
		return 0
	}

	a.run(event.ID, func(ctx context.Context) {
		smsBody := triggeredSMS(&event)
		for _, contact := range event.Contacts {
			a.sendSMS(ctx, event.ID, contact.Phone, smsBody)
			if contact.Email == "" {
				continue
			}
			msg, err := triggeredEmail(&event, contact)
			if err != nil {
				logrus.WithError(err).WithField("sos_id", event.ID).Error("Failed to build contact email")
				continue
			}
			a.sendEmail(ctx, event.ID, msg)
		}
	})

	return reachable
}

// AlertCancelled lets contacts know the victim is safe. Only sent for
// resolutions where the victim stood the alert down themselves.
func (a *ContactAlerter) AlertCancelled(event models.SOSEvent) {
	if event.ResolutionType != models.ResolutionSelfCancelled && event.ResolutionType != models.ResolutionFalseAlarm {
		return
	}
	if a.Reachable(event.Contacts) == 0 {
		return
	}

	a.run(event.ID, func(ctx context.Context) {
		body := fmt.Sprintf("✅ FALSE ALARM - %s is safe\n\n%s has cancelled the SOS alert and confirms they are safe.\n\n- Saathi", event.VictimName, event.VictimName)
		for _, contact := range event.Contacts {
			a.sendSMS(ctx, event.ID, contact.Phone, body)
		}
	})
}

// Wait blocks until queued alerts have been attempted.
func (a *ContactAlerter) Wait() {
	a.wg.Wait()
}

func (a *ContactAlerter) run(eventID string, fn func(ctx context.Context)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("sos_id", eventID).Errorf("Contact alert panicked: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), contactAlertTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (a *ContactAlerter) sendSMS(ctx context.Context, eventID, to, body string) {
	if a.sms == nil || a.sms.Availability() == interfaces.Unavailable || to == "" {
		return
	}
	if err := a.sms.SendSMS(ctx, to, body); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"sos_id": eventID,
			"to":     utils.MaskPhoneNumber(to),
		}).Warn("Failed to send contact SMS")
	}
}

func (a *ContactAlerter) sendEmail(ctx context.Context, eventID string, msg interfaces.EmailMessage) {
	if a.email == nil || a.email.Availability() == interfaces.Unavailable {
		return
	}
	if err := a.email.SendEmail(ctx, msg); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"sos_id": eventID,
			"to":     utils.MaskEmail(msg.To),
		}).Warn("Failed to send contact email")
	}
}

func MapsLink(lat, lon float64) string {
	return fmt.Sprintf("https://maps.google.com/?q=%.6f,%.6f", lat, lon)
}

func triggeredSMS(event *models.SOSEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ EMERGENCY ALERT from %s\n\n", event.VictimName)
	fmt.Fprintf(&b, "Location: %s\n", MapsLink(event.Latitude, event.Longitude))
	if event.StreetAddress != "" {
		fmt.Fprintf(&b, "Area: %s\n", event.StreetAddress)
	}
	fmt.Fprintf(&b, "Time: %s\n\n", event.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "%s needs immediate help.", event.VictimName)
	return b.String()
}

var triggeredEmailTemplate = template.Must(template.New("sos_triggered").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="background-color: #f44336; color: white; padding: 20px; text-align: center;">
        <h1>EMERGENCY ALERT</h1>
    </div>
    <div style="padding: 20px;">
        <h2>Dear {{.ContactName}},</h2>
        <p><strong>{{.VictimName}} has triggered an emergency SOS alert and needs immediate help.</strong></p>
        <p><strong>Time:</strong> {{.Timestamp}}</p>
        <p><strong>Area:</strong> {{.StreetAddress}}</p>
        <p><a href="{{.MapsLink}}">Open location in Google Maps</a></p>
        {{- with .Medical}}
        <h3>Medical Information</h3>
        <ul>
            <li><strong>Blood Type:</strong> {{.BloodType}}</li>
            <li><strong>Allergies:</strong> {{.Allergies}}</li>
            <li><strong>Conditions:</strong> {{.Conditions}}</li>
        </ul>
        {{- end}}
    </div>
</body>
</html>`))

type triggeredEmailData struct {
	ContactName   string
	VictimName    string
	Timestamp     string
	StreetAddress string
	MapsLink      string
	Medical       *medicalEmailData
}

type medicalEmailData struct {
	BloodType  string
	Allergies  string
	Conditions string
}

func triggeredEmail(event *models.SOSEvent, contact models.EmergencyContact) (interfaces.EmailMessage, error) {
	link := MapsLink(event.Latitude, event.Longitude)
	timestamp := event.CreatedAt.UTC().Format(time.RFC3339)

	plain := fmt.Sprintf("Dear %s,\n\n%s has triggered an emergency SOS alert and needs immediate help.\n\nTime: %s\nLocation: %s\nArea: %s\n",
		contact.Name, event.VictimName, timestamp, link, event.StreetAddress)
	if event.VictimPhone != "" {
		plain += fmt.Sprintf("Phone: %s\n", event.VictimPhone)
	}

	data := triggeredEmailData{
		ContactName:   contact.Name,
		VictimName:    event.VictimName,
		Timestamp:     timestamp,
		StreetAddress: event.StreetAddress,
		MapsLink:      link,
	}
	if info := event.MedicalInfo; info != nil {
		data.Medical = &medicalEmailData{
			BloodType:  orNotSpecified(info.BloodType),
			Allergies:  orNotSpecified(strings.Join(info.Allergies, ", ")),
			Conditions: orNotSpecified(strings.Join(info.Conditions, ", ")),
		}
	}

	var body bytes.Buffer
	if err := triggeredEmailTemplate.Execute(&body, data); err != nil {
		return interfaces.EmailMessage{}, fmt.Errorf("failed to render alert email: %w", err)
	}

	return interfaces.EmailMessage{
		To:        contact.Email,
		ToName:    contact.Name,
		Subject:   fmt.Sprintf("🚨 EMERGENCY ALERT - %s needs help", event.VictimName),
		PlainText: plain,
		HTML:      body.String(),
	}, nil
}

func orNotSpecified(value string) string {
	if value == "" {
		return "Not specified"
	}
	return value
}
