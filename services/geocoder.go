package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"saathi/interfaces"
	"saathi/utils"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// NominatimGeocoder turns coordinates into a street-level label without
// house numbers. Lookups are cached by coordinates rounded to 4 decimals.
type NominatimGeocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	cache      *gocache.Cache
}

type nominatimResponse struct {
	Address map[string]string `json:"address"`
	Error   string            `json:"error"`
}

func NewNominatimGeocoder(baseURL, userAgent string, timeout, cacheTTL time.Duration) *NominatimGeocoder {
	return &NominatimGeocoder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache: gocache.New(cacheTTL, 2*cacheTTL),
	}
}

func (g *NominatimGeocoder) Name() string {
	return "nominatim"
}

func (g *NominatimGeocoder) Availability() interfaces.Availability {
	if g.baseURL == "" {
		return interfaces.Unavailable
	}
	return interfaces.Available
}

func (g *NominatimGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	if err := utils.ValidateCoordinates(lat, lon); err != nil {
		return "", err
	}

	key := geocodeCacheKey(lat, lon)
	if label, found := g.cache.Get(key); found {
		return label.(string), nil
	}

	address, err := g.lookup(ctx, lat, lon)
	if err != nil {
		return "", err
	}

	label := StreetLabel(address)
	if label == "" {
		label = utils.CoordinateLabel(lat, lon)
	}

	g.cache.SetDefault(key, label)
	return label, nil
}

func (g *NominatimGeocoder) lookup(ctx context.Context, lat, lon float64) (map[string]string, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("zoom", "18")
	params.Set("addressdetails", "1")
	params.Set("accept-language", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode request failed with status %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode geocode response: %w", err)
	}
	if body.Error != "" {
		return nil, fmt.Errorf("geocode lookup failed: %s", body.Error)
	}

	return body.Address, nil
}

// StreetLabel joins at most three address parts: area, road and city.
// House numbers are never included.
func StreetLabel(address map[string]string) string {
	var parts []string

	if area := firstPresent(address, "neighbourhood", "suburb", "locality"); area != "" {
		parts = append(parts, area)
	}
	if road := address["road"]; road != "" {
		parts = append(parts, road)
	}
	if city := firstPresent(address, "city", "town", "district", "state_district"); city != "" {
		parts = append(parts, city)
	}

	return strings.Join(parts, ", ")
}

func firstPresent(address map[string]string, keys ...string) string {
	for _, key := range keys {
		if value := address[key]; value != "" {
			return value
		}
	}
	return ""
}

func geocodeCacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}
