package poller

import (
	"archive/zip"
	"bytes"
	"log"
	"testing"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/OpenTransitTools/fleettrail/business/data/fleet"
	"google.golang.org/protobuf/proto"
)

type testLogWriter struct {
	logLines []string
	log      *log.Logger
}

func makeTestLogWriter() *testLogWriter {
	logWriter := testLogWriter{
		logLines: make([]string, 0),
	}
	logger := log.New(&logWriter, "TRAIL_POLLER : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logWriter.log = logger
	return &logWriter
}

func (t *testLogWriter) Write(p []byte) (n int, err error) {
	t.logLines = append(t.logLines, string(p))
	return len(p), nil
}

func strPtr(s string) *string {
	return &s
}

func float32Ptr(f float32) *float32 {
	return &f
}

// testRoutes implements routeLookup over a fixed map
type testRoutes map[string]fleet.RouteInfo

func (r testRoutes) lookup(routeId string) (fleet.RouteInfo, bool) {
	route, present := r[routeId]
	return route, present
}

func getTestRoutes() testRoutes {
	return testRoutes{
		"98094": {RouteId: "98094", ShortName: "L1", LongName: "Sant Just - Rambla"},
		"98097": {RouteId: "98097", ShortName: "L4", LongName: "Sant Feliu - Cornella"},
		"99482": {RouteId: "99482", ShortName: "T2", LongName: "Sant Boi - Castelldefels"},
	}
}

// testEntity describes one vehicle entity in a test feed
type testEntity struct {
	entityId  string
	vehicleId *string
	label     string
	tripId    *string
	routeId   *string
	lat       *float32
	lon       *float32
	timestamp *uint64
}

// makeFeedBytes marshals testEntities into a gtfs-rt FeedMessage
func makeFeedBytes(t *testing.T, entities []testEntity) []byte {
	feed := gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(1760000000),
		},
	}
	for _, e := range entities {
		vehicle := &gtfsrt.VehiclePosition{
			Timestamp: e.timestamp,
		}
		if e.vehicleId != nil {
			vehicle.Vehicle = &gtfsrt.VehicleDescriptor{Id: e.vehicleId, Label: proto.String(e.label)}
		}
		if e.tripId != nil || e.routeId != nil {
			vehicle.Trip = &gtfsrt.TripDescriptor{TripId: e.tripId, RouteId: e.routeId}
		}
		if e.lat != nil && e.lon != nil {
			vehicle.Position = &gtfsrt.Position{Latitude: e.lat, Longitude: e.lon}
		}
		feed.Entity = append(feed.Entity, &gtfsrt.FeedEntity{
			Id:      proto.String(e.entityId),
			Vehicle: vehicle,
		})
	}
	feedBytes, err := proto.Marshal(&feed)
	if err != nil {
		t.Fatalf("unable to marshal test feed: %v", err)
	}
	return feedBytes
}

// makeGTFSZip creates a zip archive containing files keyed by name
func makeGTFSZip(t *testing.T, files map[string]string) []byte {
	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)
	for name, contents := range files {
		w, err := zipWriter.Create(name)
		if err != nil {
			t.Fatalf("unable to create %s in test zip: %v", name, err)
		}
		if _, err = w.Write([]byte(contents)); err != nil {
			t.Fatalf("unable to write %s in test zip: %v", name, err)
		}
	}
	if err := zipWriter.Close(); err != nil {
		t.Fatalf("unable to close test zip: %v", err)
	}
	return buf.Bytes()
}

const testRoutesTxt = "\uFEFFroute_id,agency_id,route_short_name,route_long_name,route_type\n" +
	"98094,TRAM,T1,Francesc Macia - Bon Viatge,0\n" +
	"98097,TRAM,T4,Ciutadella - Estacio de Sant Adria,0\n" +
	"99482,TRAM,T2,,0\n"
