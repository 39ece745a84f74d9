package trail

import (
	"fmt"
	"time"

	"github.com/OpenTransitTools/fleettrail/business/data/fleet"
)

// Options controls how Compute reads and renders a snapshot window
type Options struct {
	// Order is how the supplied snapshots are ordered
	Order Order
	// Window limits the model to the newest Window snapshots, zero uses every snapshot
	Window int
	// Palette used for route colors, DefaultPalette if empty
	Palette Palette
	// Thresholds reference points are sampled at, DefaultThresholds if nil
	Thresholds []time.Duration
}

// RenderTrail is a Trail with everything needed to draw it
type RenderTrail struct {
	Trail
	Color      string     `json:"color"`
	Segments   []Segment  `json:"segments"`
	References References `json:"references"`
}

// Model is the render-ready result of one Compute call
type Model struct {
	Trails      []RenderTrail     `json:"trails"`
	RouteColors map[string]string `json:"route_colors"`
	// Latest is the newest snapshot in the window, used for current position markers
	Latest *fleet.Snapshot `json:"latest,omitempty"`
}

// Compute builds the render-ready Model from snapshots.
// snapshots is read according to options.Order and is never modified.
func Compute(snapshots []fleet.Snapshot, options Options) (*Model, error) {
	canonical := Window(Canonicalize(snapshots, options.Order), options.Window)

	trails, err := BuildTrails(canonical)
	if err != nil {
		return nil, err
	}

	thresholds := options.Thresholds
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	colors := NewRouteColors(RouteIds(trails), options.Palette)

	model := Model{
		Trails:      make([]RenderTrail, 0, len(trails)),
		RouteColors: colors.Map(),
	}
	if len(canonical) > 0 {
		latest := canonical[len(canonical)-1]
		latest.Locations = append([]fleet.Observation{}, latest.Locations...)
		model.Latest = &latest
	}

	for _, t := range trails {
		references, err := Sample(t.Locations, thresholds)
		if err != nil {
			return nil, fmt.Errorf("sampling trail of vehicle %s on route %s: %w", t.VehicleId, t.RouteId, err)
		}
		color, _ := colors.Color(t.RouteId)
		model.Trails = append(model.Trails, RenderTrail{
			Trail:      t,
			Color:      color,
			Segments:   Segments(t.Locations),
			References: references,
		})
	}
	return &model, nil
}
