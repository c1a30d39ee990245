package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jgoulah/dayboard/pkg/models"
)

// Geocoder resolves US ZIP codes to coordinates via a Zippopotam-style API
type Geocoder struct {
	baseURL string
	client  *http.Client
}

// NewGeocoder creates a ZIP code geocoder
func NewGeocoder(baseURL string, client *http.Client) *Geocoder {
	return &Geocoder{baseURL: baseURL, client: client}
}

type zipResponse struct {
	Places []struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"places"`
}

// Lookup returns the coordinates of the first place registered for zip
func (g *Geocoder) Lookup(ctx context.Context, zip string) (models.Location, error) {
	var resp zipResponse
	if err := getJSON(ctx, g.client, g.baseURL+"/us/"+url.PathEscape(zip), nil, &resp); err != nil {
		return models.Location{}, fmt.Errorf("looking up zip %s: %w", zip, err)
	}
	if len(resp.Places) == 0 {
		return models.Location{}, fmt.Errorf("looking up zip %s: %w", zip, ErrNoData)
	}

	lat, err := strconv.ParseFloat(resp.Places[0].Latitude, 64)
	if err != nil {
		return models.Location{}, fmt.Errorf("parsing latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(resp.Places[0].Longitude, 64)
	if err != nil {
		return models.Location{}, fmt.Errorf("parsing longitude: %w", err)
	}
	return models.Location{Lat: lat, Lon: lon}, nil
}
