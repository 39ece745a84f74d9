// Package fleet provides fleet location snapshot types and their storage
package fleet

import (
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// validate is shared by all validation calls, validator.Validate caches struct metadata and is safe for concurrent use
var validate = validator.New()

// RouteInfo identifies the route a vehicle was serving when it was observed
type RouteInfo struct {
	RouteId   string `json:"route_id" validate:"required"`
	ShortName string `json:"short_name"`
	LongName  string `json:"long_name"`
}

// Observation is one vehicle's position at a single snapshot instant.
// Timestamp is epoch seconds encoded as a numeric string, as produced by the gtfs-rt feed.
// Lat and Lon are pointers so an absent coordinate is distinguishable from 0
type Observation struct {
	VehicleId string    `json:"vehicle_id" validate:"required"`
	Lat       *float64  `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon       *float64  `json:"lon" validate:"required,gte=-180,lte=180"`
	Timestamp string    `json:"ts" validate:"required,number"`
	Route     RouteInfo `json:"route"`
}

// Unix returns the observation timestamp as epoch seconds
func (o *Observation) Unix() (int64, error) {
	return ParseTimestamp(o.Timestamp)
}

// Validate returns an error describing the first missing or malformed field of the Observation
func (o *Observation) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("observation of vehicle %q: %w", o.VehicleId, err)
	}
	if _, err := ParseTimestamp(o.Timestamp); err != nil {
		return fmt.Errorf("observation of vehicle %q: %w", o.VehicleId, err)
	}
	return nil
}

// Snapshot holds every vehicle location seen during one poll of the vehicle position feed
type Snapshot struct {
	Id        string        `json:"id,omitempty"`
	Timestamp string        `json:"ts" validate:"required,number"`
	Locations []Observation `json:"locations"`
}

// Unix returns the snapshot timestamp as epoch seconds
func (s *Snapshot) Unix() (int64, error) {
	return ParseTimestamp(s.Timestamp)
}

// Validate checks the snapshot timestamp and every Observation it contains
func (s *Snapshot) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("snapshot %q: %w", s.Timestamp, err)
	}
	if _, err := ParseTimestamp(s.Timestamp); err != nil {
		return fmt.Errorf("snapshot %q: %w", s.Timestamp, err)
	}
	for i := range s.Locations {
		if err := s.Locations[i].Validate(); err != nil {
			return fmt.Errorf("snapshot %s location %d: %w", s.Timestamp, i, err)
		}
	}
	return nil
}

// Coordinate returns a pointer to a copy of v, for building Observation positions
func Coordinate(v float64) *float64 {
	return &v
}

// ParseTimestamp parses epoch seconds from a numeric string
func ParseTimestamp(ts string) (int64, error) {
	if len(ts) == 0 {
		return 0, fmt.Errorf("missing timestamp")
	}
	result, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q is not numeric: %w", ts, err)
	}
	return result, nil
}

// FormatTimestamp formats epoch seconds as the numeric string used on the wire
func FormatTimestamp(unix int64) string {
	return strconv.FormatInt(unix, 10)
}
