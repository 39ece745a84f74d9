package trail

import (
	"strconv"

	"github.com/OpenTransitTools/fleettrail/business/data/fleet"
)

// baseTime is an arbitrary epoch seconds value observations are offset from
const baseTime = int64(1760000000)

func makeObservation(vehicleId string, routeId string, unix int64) fleet.Observation {
	return fleet.Observation{
		VehicleId: vehicleId,
		Lat:       fleet.Coordinate(51.8 + float64(unix-baseTime)/100000),
		Lon:       fleet.Coordinate(-8.4 - float64(unix-baseTime)/100000),
		Timestamp: strconv.FormatInt(unix, 10),
		Route: fleet.RouteInfo{
			RouteId:   routeId,
			ShortName: "S" + routeId,
			LongName:  "Route " + routeId,
		},
	}
}

func makeSnapshot(unix int64, locations ...fleet.Observation) fleet.Snapshot {
	if locations == nil {
		locations = []fleet.Observation{}
	}
	return fleet.Snapshot{
		Timestamp: strconv.FormatInt(unix, 10),
		Locations: locations,
	}
}

// observationsAtAges makes observations of one vehicle at each age in seconds before baseTime
func observationsAtAges(ages ...int64) []fleet.Observation {
	result := make([]fleet.Observation, 0, len(ages))
	for _, age := range ages {
		result = append(result, makeObservation("V1", "R1", baseTime-age))
	}
	return result
}

// cloneSnapshots deep copies snapshots so tests can verify inputs are not modified
func cloneSnapshots(snapshots []fleet.Snapshot) []fleet.Snapshot {
	result := make([]fleet.Snapshot, 0, len(snapshots))
	for _, s := range snapshots {
		s.Locations = append([]fleet.Observation{}, s.Locations...)
		result = append(result, s)
	}
	return result
}
