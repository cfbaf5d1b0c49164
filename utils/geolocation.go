package utils

import (
	"fmt"
	"math"
)

const (
	EarthRadiusM = 6371000.0
	DegToRad     = math.Pi / 180.0
)

// CalculateDistance calculates the distance in meters between two
// coordinates using the Haversine formula.
func CalculateDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * DegToRad
	lon1Rad := lon1 * DegToRad
	lat2Rad := lat2 * DegToRad
	lon2Rad := lon2 * DegToRad

	dlat := lat2Rad - lat1Rad
	dlon := lon2Rad - lon1Rad

	a := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dlon/2)*math.Sin(dlon/2)
	// rounding can push a a hair past 1 for antipodal points
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// DistanceBetween validates both points before measuring.
func DistanceBetween(lat1, lon1, lat2, lon2 float64) (float64, error) {
	if err := ValidateCoordinates(lat1, lon1); err != nil {
		return 0, err
	}
	if err := ValidateCoordinates(lat2, lon2); err != nil {
		return 0, err
	}
	return CalculateDistance(lat1, lon1, lat2, lon2), nil
}

// RoundMeters rounds a distance to whole meters for display.
func RoundMeters(meters float64) int {
	return int(math.Round(meters))
}

// FormatDistance renders "~350m away" below a kilometre and "~1.2km away"
// above.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("~%dm away", RoundMeters(meters))
	}
	return fmt.Sprintf("~%.1fkm away", meters/1000)
}

// CoordinateLabel is the street label used when reverse geocoding is not
// possible.
func CoordinateLabel(lat, lon float64) string {
	return fmt.Sprintf("%.3f°N, %.3f°E", lat, lon)
}

// MetersToRadians converts a surface distance to a central angle.
func MetersToRadians(meters float64) float64 {
	return meters / EarthRadiusM
}

// DestinationPoint moves a point by meters along a bearing (degrees
// clockwise from north).
func DestinationPoint(lat, lon, meters, bearingDeg float64) (float64, float64) {
	angular := MetersToRadians(meters)
	bearing := bearingDeg * DegToRad
	lat1 := lat * DegToRad
	lon1 := lon * DegToRad

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(angular) + math.Cos(lat1)*math.Sin(angular)*math.Cos(bearing))
	lon2 := lon1 + math.Atan2(math.Sin(bearing)*math.Sin(angular)*math.Cos(lat1), math.Cos(angular)-math.Sin(lat1)*math.Sin(lat2))

	return lat2 / DegToRad, lon2 / DegToRad
}
