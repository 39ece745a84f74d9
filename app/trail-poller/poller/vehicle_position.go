package poller

import (
	"bytes"
	"fmt"
	"log"
	"strconv"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/OpenTransitTools/fleettrail/foundation/httpclient"
	"google.golang.org/protobuf/proto"
)

//vehiclePosition contains fields read from a GTFS-RT vehicle position feed.
//fields that are optional are pointers and will be nil if they were not present in the feed
type vehiclePosition struct {
	Id        string
	Label     string
	Timestamp int64
	TripId    *string
	RouteId   *string
	Latitude  *float32
	Longitude *float32
}

//String implements Stringer interface for vehiclePosition
func (v *vehiclePosition) String() string {
	var buffer bytes.Buffer
	buffer.WriteString("vehiclePosition{ id:")
	buffer.WriteString(v.Id)
	buffer.WriteString(", Label:\"")
	buffer.WriteString(v.Label)
	buffer.WriteString("\", RouteId:")
	if v.RouteId == nil {
		buffer.WriteString("unknown")
	} else {
		buffer.WriteString(*v.RouteId)
	}
	buffer.WriteString(", Position:")
	if v.Latitude == nil || v.Longitude == nil {
		buffer.WriteString("unknown")
	} else {
		buffer.WriteString(fmt.Sprintf("%f,%f", *v.Latitude, *v.Longitude))
	}
	buffer.WriteString(", Timestamp: ")
	buffer.WriteString(strconv.FormatInt(v.Timestamp, 10))
	buffer.WriteString(" }")
	return buffer.String()
}

//feedSource describes where and how to retrieve the vehicle position feed
type feedSource struct {
	url          string
	apiKey       string
	apiKeyHeader string
}

//headers returns the request headers required by the feed
func (f feedSource) headers() map[string]string {
	if len(f.apiKey) == 0 || len(f.apiKeyHeader) == 0 {
		return nil
	}
	return map[string]string{f.apiKeyHeader: f.apiKey}
}

/*
getVehiclePositions Retrieves gtfs-realtime vehicle positions and loads them into a non-protocol buffer object.
Any changes to the GTFS-realtime protocol or generated code can be handled here and not elsewhere in the program.
*/
func getVehiclePositions(log *log.Logger, source feedSource, now int64) ([]vehiclePosition, error) {
	gtfsResponseBytes, err := httpclient.GetBytes(source.url, source.headers())
	if err != nil {
		return nil, err
	}
	return decodeVehiclePositions(log, gtfsResponseBytes, now)
}

//decodeVehiclePositions unmarshal FeedMessage bytes into vehiclePositions. Positions without a timestamp are
//stamped with now
func decodeVehiclePositions(log *log.Logger, feedBytes []byte, now int64) ([]vehiclePosition, error) {
	feedMessage := gtfsrt.FeedMessage{}
	err := proto.Unmarshal(feedBytes, &feedMessage)
	if err != nil {
		log.Printf("Unable to unmarshal FeedMessage: %v\n", err)
		return nil, err
	}
	var vehiclePositions []vehiclePosition
	for _, entity := range feedMessage.Entity {
		if entity.Vehicle == nil {
			continue
		}
		vehicle := entity.Vehicle
		vehicleDescriptor := vehicle.Vehicle
		if vehicleDescriptor == nil || vehicleDescriptor.Id == nil {
			log.Printf("Vehicle entity missing vehicle identifier, %v\n", entity.GetId())
			continue
		}
		position := vehiclePosition{
			Id: *vehicleDescriptor.Id,
		}
		if vehicleDescriptor.Label != nil {
			position.Label = *vehicleDescriptor.Label
		}

		trip := vehicle.Trip
		if trip != nil {
			position.TripId = trip.TripId
			position.RouteId = trip.RouteId
		}

		if vehicle.Position != nil {
			vehPos := vehicle.Position
			position.Latitude = vehPos.Latitude
			position.Longitude = vehPos.Longitude
		}
		if vehicle.Timestamp != nil {
			position.Timestamp = int64(*vehicle.Timestamp)
		} else {
			position.Timestamp = now
		}

		vehiclePositions = append(vehiclePositions, position)
	}
	return vehiclePositions, nil
}
