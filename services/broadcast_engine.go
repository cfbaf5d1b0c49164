package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"saathi/interfaces"
	"saathi/models"
	"saathi/utils"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultGeocodeTimeout = 3 * time.Second

// BroadcastOutcome is the engine-internal record of one broadcast.
type BroadcastOutcome struct {
	EventID       string
	StreetAddress string
	Candidates    int
	Sent          int
	Failed        int
	Skipped       bool
}

// BroadcastEngine fans a new SOS event out to nearby responders. A failed
// broadcast is logged and counted but never changes the event status.
type BroadcastEngine struct {
	events         interfaces.EventStore
	index          interfaces.ResponderIndex
	ledger         interfaces.ActionLedger
	dispatcher     *NotificationDispatcher
	geocoder       interfaces.Geocoder
	geocodeTimeout time.Duration

	wg sync.WaitGroup
}

func NewBroadcastEngine(
	events interfaces.EventStore,
	index interfaces.ResponderIndex,
	ledger interfaces.ActionLedger,
	dispatcher *NotificationDispatcher,
	geocoder interfaces.Geocoder,
	geocodeTimeout time.Duration,
) *BroadcastEngine {
	if geocodeTimeout <= 0 {
		geocodeTimeout = defaultGeocodeTimeout
	}

	return &BroadcastEngine{
		events:         events,
		index:          index,
		ledger:         ledger,
		dispatcher:     dispatcher,
		geocoder:       geocoder,
		geocodeTimeout: geocodeTimeout,
	}
}

// Submit starts the broadcast in the background and returns immediately.
func (e *BroadcastEngine) Submit(event models.SOSEvent) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				BroadcastTotal.WithLabelValues("failed").Inc()
				logrus.WithFields(logrus.Fields{
					"sos_id": event.ID,
					"panic":  r,
					"stack":  string(debug.Stack()),
				}).Error("Broadcast panicked")
			}
		}()

		if _, err := e.Run(context.Background(), &event); err != nil {
			logrus.WithError(err).WithField("sos_id", event.ID).Error("Broadcast failed")
		}
	}()
}

// Wait blocks until every submitted broadcast has finished.
func (e *BroadcastEngine) Wait() {
	e.wg.Wait()
}

func (e *BroadcastEngine) Run(ctx context.Context, event *models.SOSEvent) (*BroadcastOutcome, error) {
	start := time.Now()
	outcome := &BroadcastOutcome{EventID: event.ID}

	if !event.CommunityBroadcastEnabled {
		outcome.Skipped = true
		BroadcastTotal.WithLabelValues("skipped").Inc()
		return outcome, nil
	}

	logger := logrus.WithFields(logrus.Fields{
		"sos_id": event.ID,
		"radius": event.BroadcastRadiusMeters,
	})

	outcome.StreetAddress = e.ResolveAddress(ctx, event.Latitude, event.Longitude)
	if outcome.StreetAddress != event.StreetAddress {
		err := e.events.UpdateStreetAddress(ctx, event.ID, outcome.StreetAddress)
		switch {
		case utils.HasCode(err, models.ErrCodeConflict):
			logger.Debug("Event resolved before its address was refined")
		case err != nil:
			logger.WithError(err).Warn("Failed to persist street address")
		}
	}

	candidates, err := e.index.FindNearby(ctx, event.Latitude, event.Longitude, event.BroadcastRadiusMeters, event.VictimID)
	if err != nil {
		BroadcastTotal.WithLabelValues("failed").Inc()
		return outcome, fmt.Errorf("responder lookup failed: %w", err)
	}
	outcome.Candidates = len(candidates)
	RespondersNotified.Observe(float64(len(candidates)))

	if len(candidates) == 0 {
		logger.Info("No responders in range")
		e.dispatcher.PublishBroadcastCompleted(event.ID, 0, BatchResult{})
		BroadcastTotal.WithLabelValues("empty").Inc()
		BroadcastDurationSeconds.Observe(time.Since(start).Seconds())
		return outcome, nil
	}

	result := e.dispatcher.NotifyBatch(ctx, candidates, event.ID, outcome.StreetAddress)
	outcome.Sent = result.Sent
	outcome.Failed = result.Failed

	// Every candidate was in scope, delivered or not.
	ledgerErrors := 0
	for _, candidate := range candidates {
		distance := candidate.DistanceMeters
		_, _, err := e.ledger.RecordAction(ctx, &models.ResponderAction{
			SOSEventID:     event.ID,
			ResponderID:    candidate.UserID,
			ActionType:     models.ActionNotified,
			DistanceMeters: &distance,
		})
		if err != nil {
			ledgerErrors++
			logger.WithError(err).WithField("responder_id", candidate.UserID).Warn("Failed to record notified action")
		}
	}

	if err := e.events.IncrementRespondersNotified(ctx, event.ID, len(candidates)); err != nil {
		BroadcastTotal.WithLabelValues("failed").Inc()
		return outcome, fmt.Errorf("failed to update notified count: %w", err)
	}

	e.dispatcher.PublishBroadcastCompleted(event.ID, len(candidates), result)

	status := "completed"
	if ledgerErrors > 0 {
		status = "partial"
	}
	BroadcastTotal.WithLabelValues(status).Inc()
	BroadcastDurationSeconds.Observe(time.Since(start).Seconds())

	logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"sent":       result.Sent,
		"failed":     result.Failed,
		"duration":   time.Since(start),
	}).Info("Community broadcast completed")

	return outcome, nil
}

// ResolveAddress never fails: when the geocoder is unavailable, slow or
// erroring, the rounded coordinate label is used instead.
func (e *BroadcastEngine) ResolveAddress(ctx context.Context, lat, lon float64) string {
	fallback := utils.CoordinateLabel(lat, lon)

	if e.geocoder == nil || e.geocoder.Availability() == interfaces.Unavailable {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, e.geocodeTimeout)
	defer cancel()

	label, err := e.geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil || label == "" {
		if err != nil {
			logrus.WithError(err).Warn("Geocoding failed, using coordinate label")
		}
		return fallback
	}
	return label
}
