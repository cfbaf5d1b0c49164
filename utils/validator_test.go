package utils

import (
	"net/http"
	"saathi/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePhone(t *testing.T) {
	vs := NewValidationService()

	type contact struct {
		Phone string `validate:"phone"`
	}

	for _, phone := range []string{"+919876543210", "9876543210", "+15005550006", "112", "+91 98765 43210", "(555) 123-4567"} {
		assert.NoError(t, vs.Validate(contact{Phone: phone}), phone)
	}
	for _, phone := range []string{"1", "+0123456789", "098765 43210", "call me", ""} {
		assert.Error(t, vs.Validate(contact{Phone: phone}), phone)
	}
}

func TestValidateResolutionAndStatus(t *testing.T) {
	vs := NewValidationService()

	assert.NoError(t, vs.Validate(models.ResolveRequest{ResolutionType: models.ResolutionFalseAlarm}))
	assert.Error(t, vs.Validate(models.ResolveRequest{ResolutionType: "timeout"}))
	assert.Error(t, vs.Validate(models.ResolveRequest{}))

	assert.NoError(t, vs.Validate(models.UpdateStatusRequest{Status: models.ActionArrived}))
	assert.Error(t, vs.Validate(models.UpdateStatusRequest{Status: models.ActionOfferedHelp}))
	assert.Error(t, vs.Validate(models.UpdateStatusRequest{Status: models.ActionNotified}))
}

func TestValidateReturnsFieldDetails(t *testing.T) {
	vs := NewValidationService()

	err := vs.Validate(models.OfferHelpRequest{})
	require.Error(t, err)

	serviceErr, ok := GetServiceError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, serviceErr.StatusCode)
	assert.Equal(t, models.ErrCodeValidation, serviceErr.Code)

	details, ok := serviceErr.Details.([]ValidationError)
	require.True(t, ok)
	require.Len(t, details, 2)
	assert.Equal(t, "Latitude", details[0].Field)
	assert.Equal(t, "Latitude is required", details[0].Message)
}

func TestValidateCoordinates(t *testing.T) {
	assert.NoError(t, ValidateCoordinates(0, 0))
	assert.NoError(t, ValidateCoordinates(-90, 180))
	assert.Error(t, ValidateCoordinates(90.0001, 0))
	assert.Error(t, ValidateCoordinates(0, -180.5))
}
