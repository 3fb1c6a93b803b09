package places

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nhle/taskradar/internal/apperr"
)

const nearbySearchAPI = "/maps/api/place/nearbysearch/json"

// DefaultBaseURL is the public Google Maps API host.
const DefaultBaseURL = "https://maps.googleapis.com"

// GoogleClient calls the Google Places Nearby Search API.
type GoogleClient struct {
	restyClient *resty.Client
	apiKey      string
}

// NewGoogleClient creates a places client. timeout bounds each request in
// addition to any deadline on the caller's context.
func NewGoogleClient(baseURL, apiKey string, timeout time.Duration) *GoogleClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &GoogleClient{restyClient: client, apiKey: apiKey}
}

type nearbySearchResponse struct {
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
	Results      []nearbyResult `json:"results"`
}

type nearbyResult struct {
	Name     string `json:"name"`
	Vicinity string `json:"vicinity"`
	PlaceID  string `json:"place_id"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	Rating       *float64 `json:"rating"`
	OpeningHours *struct {
		OpenNow *bool `json:"open_now"`
	} `json:"opening_hours"`
}

// Search runs a Nearby Search ranked by prominence within the radius.
func (c *GoogleClient) Search(ctx context.Context, req SearchRequest) ([]Place, error) {
	var body nearbySearchResponse
	resp, err := c.restyClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"location": fmt.Sprintf("%f,%f", req.Position.Latitude, req.Position.Longitude),
			"radius":   strconv.Itoa(req.RadiusM),
			"keyword":  req.Keyword,
			"key":      c.apiKey,
		}).
		SetResult(&body).
		Get(nearbySearchAPI)
	if err != nil {
		return nil, apperr.Transient("places search", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apperr.Transient("places search",
			fmt.Errorf("places API returned status %d: %s", resp.StatusCode(), resp.String()))
	}

	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return []Place{}, nil
	case "REQUEST_DENIED":
		return nil, apperr.ConfigurationMissing("places search",
			"places API denied the request: %s", body.ErrorMessage)
	default:
		return nil, apperr.Transient("places search",
			fmt.Errorf("places API status %s: %s", body.Status, body.ErrorMessage))
	}

	out := make([]Place, 0, len(body.Results))
	for _, r := range body.Results {
		p := Place{
			Name:      r.Name,
			Address:   r.Vicinity,
			Latitude:  r.Geometry.Location.Lat,
			Longitude: r.Geometry.Location.Lng,
			PlaceID:   r.PlaceID,
			Rating:    r.Rating,
		}
		if r.OpeningHours != nil {
			p.OpenNow = r.OpeningHours.OpenNow
		}
		out = append(out, p)
	}
	return out, nil
}
