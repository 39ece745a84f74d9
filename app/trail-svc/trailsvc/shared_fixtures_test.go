package trailsvc

import (
	"log"

	"github.com/OpenTransitTools/fleettrail/business/data/fleet"
)

const baseTime = int64(1760000000)

type testLogWriter struct {
	logLines []string
	log      *log.Logger
}

func makeTestLogWriter() *testLogWriter {
	logWriter := testLogWriter{
		logLines: make([]string, 0),
	}
	logger := log.New(&logWriter, "TRAIL_SVC : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logWriter.log = logger
	return &logWriter
}

func (t *testLogWriter) Write(p []byte) (n int, err error) {
	t.logLines = append(t.logLines, string(p))
	return len(p), nil
}

func makeObservation(vehicleId string, routeId string, unix int64, lat float64) fleet.Observation {
	return fleet.Observation{
		VehicleId: vehicleId,
		Lat:       fleet.Coordinate(lat),
		Lon:       fleet.Coordinate(2.17),
		Timestamp: fleet.FormatTimestamp(unix),
		Route:     fleet.RouteInfo{RouteId: routeId, ShortName: routeId},
	}
}

func makeSnapshot(unix int64, locations ...fleet.Observation) fleet.Snapshot {
	return fleet.Snapshot{
		Id:        fleet.FormatTimestamp(unix),
		Timestamp: fleet.FormatTimestamp(unix),
		Locations: locations,
	}
}

// makeTestSnapshots creates count snapshots 30 seconds apart, oldest first, each with vehicles 1 on route A
// and 2 on route B
func makeTestSnapshots(count int) []fleet.Snapshot {
	var snapshots []fleet.Snapshot
	for i := 0; i < count; i++ {
		unix := baseTime + int64(i*30)
		snapshots = append(snapshots, makeSnapshot(unix,
			makeObservation("1", "A", unix, 41.0+float64(i)/100),
			makeObservation("2", "B", unix, 42.0+float64(i)/100)))
	}
	return snapshots
}

func timestamps(snapshots []fleet.Snapshot) []string {
	results := make([]string, 0, len(snapshots))
	for _, snapshot := range snapshots {
		results = append(results, snapshot.Timestamp)
	}
	return results
}
