package services

import (
	"context"
	"saathi/interfaces"
	"saathi/models"
)

// DisclosurePolicy decides which event fields a requester may see.
// Exact coordinates and the victim's phone are unlocked by ownership or
// by an offered_help row; acknowledging alone is not enough.
type DisclosurePolicy struct {
	ledger interfaces.ActionLedger
}

func NewDisclosurePolicy(ledger interfaces.ActionLedger) *DisclosurePolicy {
	return &DisclosurePolicy{ledger: ledger}
}

func (p *DisclosurePolicy) CanSeePrecise(ctx context.Context, event *models.SOSEvent, requesterID string) (bool, error) {
	if event.IsOwnedBy(requesterID) {
		return true, nil
	}
	if requesterID == "" {
		return false, nil
	}
	return p.ledger.HasResponded(ctx, event.ID, requesterID, models.ActionOfferedHelp)
}

func (p *DisclosurePolicy) View(ctx context.Context, event *models.SOSEvent, requesterID string) (models.SOSView, error) {
	precise, err := p.CanSeePrecise(ctx, event, requesterID)
	if err != nil {
		return models.SOSView{}, err
	}
	return buildView(event, precise), nil
}

func buildView(event *models.SOSEvent, precise bool) models.SOSView {
	view := models.SOSView{
		ID:                    event.ID,
		VictimName:            event.VictimName,
		StreetAddress:         event.StreetAddress,
		PreciseLocation:       precise,
		Status:                event.Status,
		BroadcastRadiusMeters: event.BroadcastRadiusMeters,
		RespondersNotified:    event.RespondersNotified,
		CreatedAt:             event.CreatedAt,
		ResolvedAt:            event.ResolvedAt,
		ResolutionType:        event.ResolutionType,
	}

	if precise {
		lat, lon := event.Latitude, event.Longitude
		view.Latitude = &lat
		view.Longitude = &lon
		view.VictimPhone = event.VictimPhone
		view.ResolutionNotes = event.ResolutionNotes
	}

	return view
}
