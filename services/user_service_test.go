package services

import (
	"context"
	"net/http"
	"saathi/models"
	"saathi/repositories"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProfileCreatesOnFirstAccess(t *testing.T) {
	service := NewProfileService(repositories.NewMemoryStore())

	profile, err := service.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", profile.ID)
	assert.False(t, profile.IsResponderEnabled)
	assert.Equal(t, models.DefaultBroadcastRadiusMeters, profile.ResponderRadiusMeters)
}

func TestProfileUpdates(t *testing.T) {
	store := repositories.NewMemoryStore()
	service := NewProfileService(store)
	ctx := context.Background()

	profile, err := service.UpdateProfile(ctx, "user-1", models.UpdateProfileRequest{
		Name:  ptr("Ravi"),
		Phone: ptr("+919812345678"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ravi", profile.Name)

	lat, lon := centerLat, centerLon
	profile, err = service.UpdateLocation(ctx, "user-1", models.UpdateLocationRequest{Latitude: &lat, Longitude: &lon})
	require.NoError(t, err)
	require.NotNil(t, profile.CurrentLocation)
	assert.Equal(t, centerLat, profile.CurrentLocation.Lat())
	assert.Equal(t, centerLon, profile.CurrentLocation.Lon())

	profile, err = service.UpdateResponderSettings(ctx, "user-1", models.ResponderSettingsRequest{
		IsResponderEnabled:    ptr(true),
		ResponderRadiusMeters: ptr(1000),
	})
	require.NoError(t, err)
	assert.True(t, profile.IsResponderEnabled)
	assert.Equal(t, 1000, profile.ResponderRadiusMeters)
	assert.Equal(t, "Ravi", profile.Name)

	require.NoError(t, service.UpdateFCMToken(ctx, "user-1", models.UpdateFCMTokenRequest{FCMToken: "token-1"}))
	stored, err := store.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "token-1", stored.FCMToken)

	candidates, err := store.FindNearby(ctx, centerLat, centerLon, 500, "")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "token-1", candidates[0].PushToken)
}

func TestProfileValidation(t *testing.T) {
	service := NewProfileService(repositories.NewMemoryStore())
	ctx := context.Background()

	_, err := service.UpdateProfile(ctx, "user-1", models.UpdateProfileRequest{Phone: ptr("12")})
	requireStatus(t, err, http.StatusBadRequest)

	_, err = service.UpdateResponderSettings(ctx, "user-1", models.ResponderSettingsRequest{
		IsResponderEnabled:    ptr(true),
		ResponderRadiusMeters: ptr(20),
	})
	requireStatus(t, err, http.StatusBadRequest)

	_, err = service.UpdateLocation(ctx, "user-1", models.UpdateLocationRequest{})
	requireStatus(t, err, http.StatusBadRequest)

	err = service.UpdateFCMToken(ctx, "user-1", models.UpdateFCMTokenRequest{})
	requireStatus(t, err, http.StatusBadRequest)
}
