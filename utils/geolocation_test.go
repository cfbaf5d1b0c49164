package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateDistance(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		delta                  float64
	}{
		{name: "same point", lat1: 12.9716, lon1: 77.5946, lat2: 12.9716, lon2: 77.5946, want: 0, delta: 0},
		{name: "one degree of latitude", lat1: 0, lon1: 0, lat2: 1, lon2: 0, want: 111195, delta: 1},
		{name: "bengaluru to chennai", lat1: 12.9716, lon1: 77.5946, lat2: 13.0827, lon2: 80.2707, want: 290000, delta: 2000},
		{name: "antipodes", lat1: 0, lon1: 0, lat2: 0, lon2: 180, want: math.Pi * EarthRadiusM, delta: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateDistance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, tt.delta)

			reverse := CalculateDistance(tt.lat2, tt.lon2, tt.lat1, tt.lon1)
			assert.InDelta(t, got, reverse, 1e-6)
		})
	}
}

func TestDistanceBetweenValidates(t *testing.T) {
	_, err := DistanceBetween(91, 0, 0, 0)
	assert.Error(t, err)

	_, err = DistanceBetween(0, 0, 0, -181)
	assert.Error(t, err)

	_, err = DistanceBetween(math.NaN(), 0, 0, 0)
	assert.Error(t, err)

	d, err := DistanceBetween(-90, -180, 90, 180)
	require.NoError(t, err)
	assert.Greater(t, d, 0.0)
}

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		meters float64
		want   string
	}{
		{meters: 0, want: "~0m away"},
		{meters: 99.6, want: "~100m away"},
		{meters: 350, want: "~350m away"},
		{meters: 999.4, want: "~999m away"},
		{meters: 1000, want: "~1.0km away"},
		{meters: 1234, want: "~1.2km away"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDistance(tt.meters))
	}
}

func TestCoordinateLabel(t *testing.T) {
	assert.Equal(t, "12.972°N, 77.595°E", CoordinateLabel(12.9716, 77.5946))
}

func TestMetersToRadians(t *testing.T) {
	assert.InDelta(t, math.Pi, MetersToRadians(math.Pi*EarthRadiusM), 1e-12)
}

func TestDestinationPointRoundTrip(t *testing.T) {
	for _, bearing := range []float64{0, 45, 90, 180, 270} {
		lat, lon := DestinationPoint(12.9716, 77.5946, 750, bearing)
		assert.InDelta(t, 750, CalculateDistance(12.9716, 77.5946, lat, lon), 0.5, "bearing %v", bearing)
	}

	lat, lon := DestinationPoint(12.9716, 77.5946, 1000, 0)
	assert.Greater(t, lat, 12.9716)
	assert.InDelta(t, 77.5946, lon, 1e-9)
}
