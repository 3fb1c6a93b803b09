package model

import (
	"fmt"
	"time"
)

// Marker place IDs. A marker row never carries real coordinates.
const (
	// PlaceIDPendingSync marks a generated search query waiting for
	// resolution. The query text is stored in Address.
	PlaceIDPendingSync = "PENDING_LOCATION_SYNC"

	// PlaceIDNoResults marks a task whose search returned nothing.
	PlaceIDNoResults = "NO_RESULTS"
)

// TaskLocation is a candidate real-world place for a location-dependent task.
type TaskLocation struct {
	ID             string    `json:"id" db:"id"`
	TaskID         string    `json:"task_id" db:"task_id"`
	Name           string    `json:"name" db:"name"`
	Address        string    `json:"address" db:"address"`
	Latitude       float64   `json:"latitude" db:"latitude"`
	Longitude      float64   `json:"longitude" db:"longitude"`
	PlaceID        string    `json:"place_id" db:"place_id"`
	Rating         *float64  `json:"rating,omitempty" db:"rating"`
	IsOpen         *bool     `json:"is_open,omitempty" db:"is_open"`
	DistanceMeters int       `json:"distance_meters" db:"distance_meters"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// IsMarker reports whether the row is a pending-query or no-results marker.
func (l TaskLocation) IsMarker() bool {
	return l.PlaceID == PlaceIDPendingSync || l.PlaceID == PlaceIDNoResults
}

// Query returns the search keyword carried by a pending marker.
func (l TaskLocation) Query() string {
	if l.PlaceID != PlaceIDPendingSync {
		return ""
	}
	return l.Address
}

// Position is a reported user position in decimal degrees.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks the coordinate ranges.
func (p Position) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude %f out of range", p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude %f out of range", p.Longitude)
	}
	return nil
}

// ProximityCandidate is a resolved location joined with its task title.
type ProximityCandidate struct {
	TaskLocation
	TaskTitle string `db:"task_title"`
}
