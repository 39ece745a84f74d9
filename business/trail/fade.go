package trail

import "github.com/OpenTransitTools/fleettrail/business/data/fleet"

const (
	// MinOpacity is the opacity of the oldest segment of a trail
	MinOpacity = 0.3
	// MaxOpacity is the opacity of the most recent segment of a trail
	MaxOpacity = 1.0
)

// Segment is the line between two consecutive observations of a Trail
type Segment struct {
	From    fleet.Observation `json:"from"`
	To      fleet.Observation `json:"to"`
	Opacity float64           `json:"opacity"`
}

// Segments pairs consecutive observations, segment i connects observation i and i+1.
// Opacity fades from MaxOpacity on the most recent segment to MinOpacity on the oldest.
// Fewer than two observations produce no segments.
func Segments(locations []fleet.Observation) []Segment {
	if len(locations) < 2 {
		return []Segment{}
	}
	total := len(locations) - 1
	segments := make([]Segment, 0, total)
	for idx := 0; idx < total; idx++ {
		segments = append(segments, Segment{
			From:    locations[idx],
			To:      locations[idx+1],
			Opacity: SegmentOpacity(idx, total),
		})
	}
	return segments
}

// SegmentOpacity returns the opacity of segment idx out of total segments ordered oldest to newest.
// A single segment is the most recent one and is fully opaque.
func SegmentOpacity(idx int, total int) float64 {
	if total <= 1 {
		return MaxOpacity
	}
	if idx < 0 {
		idx = 0
	} else if idx > total-1 {
		idx = total - 1
	}
	// age is the number of segments newer than idx
	age := total - 1 - idx
	return MaxOpacity - (MaxOpacity-MinOpacity)*float64(age)/float64(total-1)
}
