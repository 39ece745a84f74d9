package trail

import (
	"errors"
	"reflect"
	"testing"

	"github.com/OpenTransitTools/fleettrail/business/data/fleet"
	"github.com/matryer/is"
)

func TestBuildTrails(t *testing.T) {
	type want struct {
		keys   [][2]string
		counts []int
	}
	tests := []struct {
		name      string
		snapshots []fleet.Snapshot
		want      want
	}{
		{
			name:      "no snapshots",
			snapshots: []fleet.Snapshot{},
			want:      want{keys: [][2]string{}, counts: []int{}},
		},
		{
			name:      "snapshot without locations",
			snapshots: []fleet.Snapshot{makeSnapshot(baseTime)},
			want:      want{keys: [][2]string{}, counts: []int{}},
		},
		{
			name: "single observation trail",
			snapshots: []fleet.Snapshot{
				makeSnapshot(baseTime, makeObservation("V1", "R1", baseTime)),
			},
			want: want{keys: [][2]string{{"R1", "V1"}}, counts: []int{1}},
		},
		{
			name: "vehicles grouped in first seen order",
			snapshots: []fleet.Snapshot{
				makeSnapshot(baseTime,
					makeObservation("V2", "R2", baseTime),
					makeObservation("V1", "R1", baseTime)),
				makeSnapshot(baseTime+30,
					makeObservation("V1", "R1", baseTime+30),
					makeObservation("V3", "R1", baseTime+30),
					makeObservation("V2", "R2", baseTime+30)),
				makeSnapshot(baseTime+60),
				makeSnapshot(baseTime+90,
					makeObservation("V3", "R1", baseTime+90)),
			},
			want: want{
				keys:   [][2]string{{"R2", "V2"}, {"R1", "V1"}, {"R1", "V3"}},
				counts: []int{2, 2, 2},
			},
		},
		{
			name: "vehicle changing route starts a new trail",
			snapshots: []fleet.Snapshot{
				makeSnapshot(baseTime, makeObservation("V1", "R1", baseTime)),
				makeSnapshot(baseTime+30, makeObservation("V1", "R2", baseTime+30)),
				makeSnapshot(baseTime+60, makeObservation("V1", "R1", baseTime+60)),
			},
			want: want{
				keys:   [][2]string{{"R1", "V1"}, {"R2", "V1"}},
				counts: []int{2, 1},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildTrails(tt.snapshots)
			if err != nil {
				t.Fatalf("BuildTrails() unexpected error = %v", err)
			}
			gotKeys := make([][2]string, 0)
			gotCounts := make([]int, 0)
			for _, trail := range got {
				gotKeys = append(gotKeys, [2]string{trail.RouteId, trail.VehicleId})
				gotCounts = append(gotCounts, len(trail.Locations))
			}
			if !reflect.DeepEqual(gotKeys, tt.want.keys) {
				t.Errorf("BuildTrails() keys = %v, want %v", gotKeys, tt.want.keys)
			}
			if !reflect.DeepEqual(gotCounts, tt.want.counts) {
				t.Errorf("BuildTrails() counts = %v, want %v", gotCounts, tt.want.counts)
			}
		})
	}
}

func TestBuildTrails_GroupingAndOrder(t *testing.T) {
	is := is.New(t)

	snapshots := make([]fleet.Snapshot, 0)
	vehicles := []struct{ vehicleId, routeId string }{
		{"V1", "R1"}, {"V2", "R1"}, {"V3", "R2"}, {"V4", "R3"},
	}
	for i := int64(0); i < 24; i++ {
		ts := baseTime + i*30
		locations := make([]fleet.Observation, 0)
		for j, v := range vehicles {
			// vehicles drop out of some snapshots
			if (int64(j)+i)%3 == 0 {
				continue
			}
			locations = append(locations, makeObservation(v.vehicleId, v.routeId, ts))
		}
		snapshots = append(snapshots, makeSnapshot(ts, locations...))
	}
	original := cloneSnapshots(snapshots)

	trails, err := BuildTrails(snapshots)
	is.NoErr(err)
	is.Equal(snapshots, original) // input must not be modified

	inputCount := make(map[fleet.Observation]int)
	for _, s := range snapshots {
		for _, o := range s.Locations {
			inputCount[o]++
		}
	}
	outputCount := make(map[fleet.Observation]int)
	for _, trail := range trails {
		var previous int64
		for i, o := range trail.Locations {
			is.Equal(o.VehicleId, trail.VehicleId)
			is.Equal(o.Route.RouteId, trail.RouteId)
			unix, err := o.Unix()
			is.NoErr(err)
			if i > 0 {
				is.True(unix > previous) // encounter order follows snapshot order
			}
			previous = unix
			outputCount[o]++
		}
	}
	is.Equal(outputCount, inputCount) // no loss, no duplication
}

func TestBuildTrails_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		snapshots []fleet.Snapshot
	}{
		{
			name: "missing vehicle id",
			snapshots: []fleet.Snapshot{
				makeSnapshot(baseTime, makeObservation("V1", "R1", baseTime)),
				makeSnapshot(baseTime+30, makeObservation("", "R1", baseTime+30)),
			},
		},
		{
			name: "missing route id",
			snapshots: []fleet.Snapshot{
				makeSnapshot(baseTime, makeObservation("V1", "", baseTime)),
			},
		},
		{
			name: "non numeric observation timestamp",
			snapshots: []fleet.Snapshot{
				{
					Timestamp: "1760000000",
					Locations: []fleet.Observation{
						{VehicleId: "V1", Timestamp: "yesterday", Route: fleet.RouteInfo{RouteId: "R1"}},
					},
				},
			},
		},
		{
			name:      "non numeric snapshot timestamp",
			snapshots: []fleet.Snapshot{{Timestamp: "12:00"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildTrails(tt.snapshots)
			if !errors.Is(err, ErrMalformedInput) {
				t.Errorf("BuildTrails() error = %v, want ErrMalformedInput", err)
			}
			if got != nil {
				t.Errorf("BuildTrails() returned partial trails %+v", got)
			}
		})
	}
}

func TestCanonicalize(t *testing.T) {
	first := makeSnapshot(baseTime)
	second := makeSnapshot(baseTime + 30)
	third := makeSnapshot(baseTime + 60)
	tests := []struct {
		name      string
		snapshots []fleet.Snapshot
		order     Order
		want      []fleet.Snapshot
	}{
		{
			name:      "oldest first is kept",
			snapshots: []fleet.Snapshot{first, second, third},
			order:     OldestFirst,
			want:      []fleet.Snapshot{first, second, third},
		},
		{
			name:      "newest first is reversed",
			snapshots: []fleet.Snapshot{third, second, first},
			order:     NewestFirst,
			want:      []fleet.Snapshot{first, second, third},
		},
		{
			name:      "empty",
			snapshots: []fleet.Snapshot{},
			order:     NewestFirst,
			want:      []fleet.Snapshot{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := cloneSnapshots(tt.snapshots)
			got := Canonicalize(tt.snapshots, tt.order)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Canonicalize() = %v, want %v", got, tt.want)
			}
			if !reflect.DeepEqual(tt.snapshots, original) {
				t.Errorf("Canonicalize() modified its input")
			}
		})
	}
}

func TestWindow(t *testing.T) {
	snapshots := []fleet.Snapshot{
		makeSnapshot(baseTime), makeSnapshot(baseTime + 30), makeSnapshot(baseTime + 60),
	}
	tests := []struct {
		name string
		size int
		want []string
	}{
		{name: "no limit", size: 0, want: []string{"1760000000", "1760000030", "1760000060"}},
		{name: "newest two", size: 2, want: []string{"1760000030", "1760000060"}},
		{name: "larger than history", size: 24, want: []string{"1760000000", "1760000030", "1760000060"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make([]string, 0)
			for _, s := range Window(snapshots, tt.size) {
				got = append(got, s.Timestamp)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Window() = %v, want %v", got, tt.want)
			}
		})
	}
}
