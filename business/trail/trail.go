// Package trail derives render-ready vehicle trails from a window of fleet snapshots.
//
// Everything in this package is a pure function of its arguments: inputs are never modified,
// every result is freshly allocated and nothing is cached between calls, so it is safe to call
// concurrently from any number of goroutines.
package trail

import (
	"errors"
	"fmt"

	"github.com/OpenTransitTools/fleettrail/business/data/fleet"
)

// ErrMalformedInput is returned when a snapshot or observation is missing required fields
// or carries a timestamp that isn't numeric. No partial results are produced.
var ErrMalformedInput = errors.New("malformed fleet snapshot")

// Order describes how a collaborator ordered the snapshots it supplies
type Order int

const (
	// OldestFirst snapshots are ordered from oldest to newest
	OldestFirst Order = iota
	// NewestFirst snapshots are ordered from newest to oldest
	NewestFirst
)

// String implements Stringer interface for Order
func (o Order) String() string {
	switch o {
	case OldestFirst:
		return "oldest-first"
	case NewestFirst:
		return "newest-first"
	}
	return "unknown"
}

// Trail is the ordered history of observations for one route and vehicle pair.
// Locations are in the order they were encountered in the oldest first snapshot sequence.
type Trail struct {
	RouteId   string              `json:"route_id"`
	VehicleId string              `json:"vehicle_id"`
	Locations []fleet.Observation `json:"locations"`
}

// trailKey identifies a Trail. A vehicle that changes route starts a new Trail
type trailKey struct {
	routeId   string
	vehicleId string
}

// Canonicalize returns a new slice holding snapshots ordered oldest to newest.
// order describes how snapshots are currently ordered.
func Canonicalize(snapshots []fleet.Snapshot, order Order) []fleet.Snapshot {
	result := make([]fleet.Snapshot, len(snapshots))
	if order == NewestFirst {
		for i, snapshot := range snapshots {
			result[len(snapshots)-1-i] = snapshot
		}
		return result
	}
	copy(result, snapshots)
	return result
}

// Window returns a new slice of the newest size snapshots from oldest first snapshots, still oldest first.
// size less than one means no limit
func Window(snapshots []fleet.Snapshot, size int) []fleet.Snapshot {
	start := 0
	if size > 0 && size < len(snapshots) {
		start = len(snapshots) - size
	}
	return append(make([]fleet.Snapshot, 0, len(snapshots)-start), snapshots[start:]...)
}

// ValidateSnapshots checks every snapshot and observation, returning an error wrapping ErrMalformedInput for the
// first problem found
func ValidateSnapshots(snapshots []fleet.Snapshot) error {
	for i := range snapshots {
		if err := snapshots[i].Validate(); err != nil {
			return fmt.Errorf("%w: snapshot %d: %w", ErrMalformedInput, i, err)
		}
	}
	return nil
}

// BuildTrails groups the observations of oldest first snapshots into one Trail per route and vehicle pair.
// Trails are returned in the order their key was first seen. Any malformed observation rejects the whole batch.
func BuildTrails(snapshots []fleet.Snapshot) ([]Trail, error) {
	if err := ValidateSnapshots(snapshots); err != nil {
		return nil, err
	}
	positions := make(map[trailKey]int)
	trails := make([]Trail, 0)
	for _, snapshot := range snapshots {
		for _, location := range snapshot.Locations {
			key := trailKey{routeId: location.Route.RouteId, vehicleId: location.VehicleId}
			position, present := positions[key]
			if !present {
				position = len(trails)
				positions[key] = position
				trails = append(trails, Trail{
					RouteId:   key.routeId,
					VehicleId: key.vehicleId,
					Locations: make([]fleet.Observation, 0, len(snapshots)),
				})
			}
			trails[position].Locations = append(trails[position].Locations, location)
		}
	}
	return trails, nil
}
