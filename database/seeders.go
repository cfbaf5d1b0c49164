package database

import (
	"context"
	"fmt"
	"saathi/interfaces"
	"saathi/models"
	"saathi/utils"
	"time"

	"github.com/sirupsen/logrus"
)

// Seeder represents a development data seeder
type Seeder struct {
	Name        string
	Description string
	Seed        func(context.Context, interfaces.ProfileStore) error
}

// DemoCenter is where demo responders are placed (central Bengaluru).
var DemoCenter = struct{ Lat, Lon float64 }{Lat: 12.9716, Lon: 77.5946}

var seeders = []Seeder{
	{
		Name:        "demo_responders",
		Description: "Create responder profiles around the demo center",
		Seed:        seedDemoResponders,
	},
}

type demoResponder struct {
	ID           string
	Name         string
	Phone        string
	Meters       float64
	BearingDeg   float64
	RadiusMeters int
	Enabled      bool
}

var demoResponders = []demoResponder{
	{ID: "demo-responder-1", Name: "Arjun Demo", Phone: "+919800000001", Meters: 150, BearingDeg: 0, RadiusMeters: 500, Enabled: true},
	{ID: "demo-responder-2", Name: "Priya Demo", Phone: "+919800000002", Meters: 400, BearingDeg: 90, RadiusMeters: 1000, Enabled: true},
	{ID: "demo-responder-3", Name: "Kabir Demo", Phone: "+919800000003", Meters: 900, BearingDeg: 200, RadiusMeters: 2000, Enabled: true},
	{ID: "demo-responder-4", Name: "Neha Demo", Phone: "+919800000004", Meters: 250, BearingDeg: 300, RadiusMeters: 500, Enabled: false},
}

// RunSeeders writes demo data through the profile store, so it works with
// either store driver. Profile updates are upserts, which makes reruns
// harmless.
func RunSeeders(profiles interfaces.ProfileStore) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, seeder := range seeders {
		logrus.Infof("Running seeder: %s", seeder.Name)

		if err := seeder.Seed(ctx, profiles); err != nil {
			return fmt.Errorf("seeder %s failed: %w", seeder.Name, err)
		}
	}

	logrus.Info("All seeders completed")
	return nil
}

func seedDemoResponders(ctx context.Context, profiles interfaces.ProfileStore) error {
	for _, r := range demoResponders {
		lat, lon := utils.DestinationPoint(DemoCenter.Lat, DemoCenter.Lon, r.Meters, r.BearingDeg)
		point := models.NewGeoPoint(lat, lon)
		name, phone := r.Name, r.Phone
		enabled, radius := r.Enabled, r.RadiusMeters

		_, err := profiles.UpdateProfile(ctx, r.ID, models.ProfileUpdate{
			Name:                  &name,
			Phone:                 &phone,
			IsResponderEnabled:    &enabled,
			ResponderRadiusMeters: &radius,
			Location:              &point,
		})
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", r.ID, err)
		}
	}
	return nil
}
