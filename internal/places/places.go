// Package places searches for real-world places near a position.
package places

import (
	"context"

	"github.com/nhle/taskradar/internal/apperr"
	"github.com/nhle/taskradar/internal/model"
)

// Place is one ranked search result.
type Place struct {
	Name      string
	Address   string
	Latitude  float64
	Longitude float64
	PlaceID   string
	Rating    *float64
	OpenNow   *bool
}

// SearchRequest describes a keyword search around a position.
type SearchRequest struct {
	Position model.Position
	RadiusM  int
	Keyword  string
}

// Searcher finds places matching a keyword. Results are ranked best first;
// an empty slice with a nil error means the search found nothing.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) ([]Place, error)
}

// Disabled is the Searcher used when no places API key is configured.
type Disabled struct{}

// Search always reports the missing configuration.
func (Disabled) Search(context.Context, SearchRequest) ([]Place, error) {
	return nil, apperr.ConfigurationMissing("places search", "places.api_key is not set")
}

// ToLocation converts a place into a task location row.
func (p Place) ToLocation(taskID string) model.TaskLocation {
	return model.TaskLocation{
		TaskID:    taskID,
		Name:      p.Name,
		Address:   p.Address,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		PlaceID:   p.PlaceID,
		Rating:    p.Rating,
		IsOpen:    p.OpenNow,
	}
}
