package services

import (
	"context"
	"saathi/interfaces"
	"saathi/models"
	"saathi/utils"
)

// ProfileService manages the responder-facing profile of the caller.
type ProfileService struct {
	profiles  interfaces.ProfileStore
	validator *utils.ValidationService
}

func NewProfileService(profiles interfaces.ProfileStore) *ProfileService {
	return &ProfileService{
		profiles:  profiles,
		validator: utils.NewValidationService(),
	}
}

// GetProfile creates an empty profile on first access.
func (ps *ProfileService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := ps.profiles.GetProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !utils.IsNotFound(err) {
		return nil, err
	}
	return ps.profiles.UpdateProfile(ctx, userID, models.ProfileUpdate{})
}

func (ps *ProfileService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.Profile, error) {
	if err := ps.validator.Validate(req); err != nil {
		return nil, err
	}

	return ps.profiles.UpdateProfile(ctx, userID, models.ProfileUpdate{
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
	})
}

func (ps *ProfileService) UpdateLocation(ctx context.Context, userID string, req models.UpdateLocationRequest) (*models.Profile, error) {
	if err := ps.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := utils.ValidateCoordinates(*req.Latitude, *req.Longitude); err != nil {
		return nil, err
	}

	point := models.NewGeoPoint(*req.Latitude, *req.Longitude)
	return ps.profiles.UpdateProfile(ctx, userID, models.ProfileUpdate{
		Location: &point,
	})
}

func (ps *ProfileService) UpdateResponderSettings(ctx context.Context, userID string, req models.ResponderSettingsRequest) (*models.Profile, error) {
	if err := ps.validator.Validate(req); err != nil {
		return nil, err
	}

	return ps.profiles.UpdateProfile(ctx, userID, models.ProfileUpdate{
		IsResponderEnabled:    req.IsResponderEnabled,
		ResponderRadiusMeters: req.ResponderRadiusMeters,
	})
}

func (ps *ProfileService) UpdateFCMToken(ctx context.Context, userID string, req models.UpdateFCMTokenRequest) error {
	if err := ps.validator.Validate(req); err != nil {
		return err
	}

	_, err := ps.profiles.UpdateProfile(ctx, userID, models.ProfileUpdate{
		FCMToken: &req.FCMToken,
	})
	return err
}
