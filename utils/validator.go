package utils

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"saathi/models"

	"github.com/go-playground/validator/v10"
)

var phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

type ValidationService struct {
	validator *validator.Validate
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func NewValidationService() *ValidationService {
	v := validator.New()

	v.RegisterValidation("phone", validatePhone)
	v.RegisterValidation("resolution_type", validateResolutionType)
	v.RegisterValidation("responder_status", validateResponderStatus)

	return &ValidationService{
		validator: v,
	}
}

func (vs *ValidationService) ValidateStruct(s interface{}) []ValidationError {
	var validationErrors []ValidationError

	err := vs.validator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []ValidationError{{Message: err.Error()}}
	}

	for _, fe := range fieldErrors {
		validationErrors = append(validationErrors, ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Value:   fmt.Sprintf("%v", fe.Value()),
			Message: vs.getErrorMessage(fe),
		})
	}

	return validationErrors
}

// Validate returns a ServiceError carrying the field errors, or nil.
func (vs *ValidationService) Validate(s interface{}) error {
	if validationErrors := vs.ValidateStruct(s); len(validationErrors) > 0 {
		return NewValidationError("Validation failed", validationErrors)
	}
	return nil
}

func (vs *ValidationService) getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Invalid email format"
	case "phone":
		return "Invalid phone number format"
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "resolution_type":
		return "resolution_type must be one of: self_cancelled, responder_helped, emergency_services, false_alarm"
	case "responder_status":
		return "status must be one of: en_route, arrived, helped, cancelled"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func validatePhone(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(models.NormalizePhone(fl.Field().String()))
}

func validateResolutionType(fl validator.FieldLevel) bool {
	return models.ResolutionType(fl.Field().String()).IsValid()
}

func validateResponderStatus(fl validator.FieldLevel) bool {
	return models.ActionType(fl.Field().String()).IsResponderStatus()
}

// ValidateCoordinates rejects out-of-range latitude/longitude pairs.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return NewBadRequestError(fmt.Sprintf("latitude %v out of range [-90, 90]", lat))
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return NewBadRequestError(fmt.Sprintf("longitude %v out of range [-180, 180]", lon))
	}
	return nil
}
