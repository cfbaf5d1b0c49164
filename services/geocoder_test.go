package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"saathi/interfaces"
	"saathi/utils"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nominatimServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "18", r.URL.Query().Get("zoom"))
		assert.Equal(t, "saathi-test", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestReverseGeocodeBuildsStreetLabelAndCaches(t *testing.T) {
	server, hits := nominatimServer(t, http.StatusOK, `{
		"address": {
			"house_number": "42",
			"road": "100 Feet Road",
			"neighbourhood": "Indiranagar",
			"city": "Bengaluru",
			"postcode": "560038"
		}
	}`)
	geocoder := NewNominatimGeocoder(server.URL+"/", "saathi-test", time.Second, time.Hour)

	label, err := geocoder.ReverseGeocode(context.Background(), centerLat, centerLon)
	require.NoError(t, err)
	assert.Equal(t, "Indiranagar, 100 Feet Road, Bengaluru", label)
	assert.NotContains(t, label, "42")

	// rounds to the same cache key
	again, err := geocoder.ReverseGeocode(context.Background(), centerLat+0.00001, centerLon)
	require.NoError(t, err)
	assert.Equal(t, label, again)
	assert.Equal(t, int32(1), hits.Load())
}

func TestReverseGeocodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusServiceUnavailable, body: `{}`},
		{name: "lookup error", status: http.StatusOK, body: `{"error": "Unable to geocode"}`},
		{name: "malformed body", status: http.StatusOK, body: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := nominatimServer(t, tt.status, tt.body)
			geocoder := NewNominatimGeocoder(server.URL, "saathi-test", time.Second, time.Hour)

			_, err := geocoder.ReverseGeocode(context.Background(), centerLat, centerLon)
			assert.Error(t, err)
		})
	}
}

func TestReverseGeocodeEmptyAddressFallsBackToCoordinates(t *testing.T) {
	server, _ := nominatimServer(t, http.StatusOK, `{"address": {"postcode": "560038"}}`)
	geocoder := NewNominatimGeocoder(server.URL, "saathi-test", time.Second, time.Hour)

	label, err := geocoder.ReverseGeocode(context.Background(), centerLat, centerLon)
	require.NoError(t, err)
	assert.Equal(t, utils.CoordinateLabel(centerLat, centerLon), label)
}

func TestReverseGeocodeRejectsInvalidCoordinates(t *testing.T) {
	geocoder := NewNominatimGeocoder("http://127.0.0.1:1", "saathi-test", time.Second, time.Hour)

	_, err := geocoder.ReverseGeocode(context.Background(), 95, centerLon)
	assert.Error(t, err)
}

func TestGeocoderWithoutURLIsUnavailable(t *testing.T) {
	geocoder := NewNominatimGeocoder("", "saathi-test", time.Second, time.Hour)
	assert.Equal(t, interfaces.Unavailable, geocoder.Availability())
}

func TestStreetLabel(t *testing.T) {
	tests := []struct {
		name    string
		address map[string]string
		want    string
	}{
		{
			name:    "suburb and town",
			address: map[string]string{"suburb": "Koramangala", "road": "80 Feet Road", "town": "Bengaluru"},
			want:    "Koramangala, 80 Feet Road, Bengaluru",
		},
		{
			name:    "neighbourhood wins over suburb",
			address: map[string]string{"neighbourhood": "HAL 2nd Stage", "suburb": "Indiranagar"},
			want:    "HAL 2nd Stage",
		},
		{
			name:    "road only",
			address: map[string]string{"road": "MG Road", "house_number": "1"},
			want:    "MG Road",
		},
		{
			name:    "district as city",
			address: map[string]string{"road": "NH 44", "state_district": "Bangalore Urban"},
			want:    "NH 44, Bangalore Urban",
		},
		{
			name:    "nothing usable",
			address: map[string]string{"country": "India"},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StreetLabel(tt.address))
		})
	}
}
