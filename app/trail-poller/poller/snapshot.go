package poller

import (
	"time"

	"github.com/OpenTransitTools/fleettrail/business/data/fleet"
	"github.com/google/uuid"
)

// routeLookup resolves route names by routeId
type routeLookup interface {
	lookup(routeId string) (fleet.RouteInfo, bool)
}

// snapshotStats counts the vehicle positions left out of a snapshot and why
type snapshotStats struct {
	included        int
	missingRoute    int
	unknownRoute    int
	notWatched      int
	missingPosition int
}

// watchedRoutes is the set of routeIds included in snapshots. An empty set watches every route
type watchedRoutes map[string]bool

func makeWatchedRoutes(routeIds []string) watchedRoutes {
	result := make(watchedRoutes)
	for _, routeId := range routeIds {
		if len(routeId) > 0 {
			result[routeId] = true
		}
	}
	return result
}

func (w watchedRoutes) includes(routeId string) bool {
	if len(w) == 0 {
		return true
	}
	return w[routeId]
}

// buildSnapshot converts vehiclePositions into a fleet.Snapshot stamped with now.
// positions are kept in feed order and only those on a watched, known route with a location are included
func buildSnapshot(positions []vehiclePosition,
	routes routeLookup,
	watched watchedRoutes,
	now time.Time) (*fleet.Snapshot, snapshotStats) {

	stats := snapshotStats{}
	snapshot := fleet.Snapshot{
		Id:        uuid.NewString(),
		Timestamp: fleet.FormatTimestamp(now.Unix()),
		Locations: make([]fleet.Observation, 0, len(positions)),
	}
	for _, position := range positions {
		if position.RouteId == nil || len(*position.RouteId) == 0 {
			stats.missingRoute++
			continue
		}
		if !watched.includes(*position.RouteId) {
			stats.notWatched++
			continue
		}
		route, present := routes.lookup(*position.RouteId)
		if !present {
			stats.unknownRoute++
			continue
		}
		if position.Latitude == nil || position.Longitude == nil {
			stats.missingPosition++
			continue
		}
		snapshot.Locations = append(snapshot.Locations, fleet.Observation{
			VehicleId: position.Id,
			Lat:       fleet.Coordinate(float64(*position.Latitude)),
			Lon:       fleet.Coordinate(float64(*position.Longitude)),
			Timestamp: fleet.FormatTimestamp(position.Timestamp),
			Route:     route,
		})
		stats.included++
	}
	return &snapshot, stats
}
