package trail

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/OpenTransitTools/fleettrail/business/data/fleet"
)

// ErrEmptyTrail is returned when sampling a trail without observations
var ErrEmptyTrail = errors.New("trail has no observations")

// DefaultThresholds are the ages reference points are sampled at when none are configured
func DefaultThresholds() []time.Duration {
	return []time.Duration{5 * time.Minute, 10 * time.Minute}
}

// Reference is the most recent observation of a trail that is at least Threshold older than the newest one
type Reference struct {
	Threshold   time.Duration     `json:"-"`
	Observation fleet.Observation `json:"location"`
}

// MarshalJSON adds threshold_seconds to the json form of Reference
func (r Reference) MarshalJSON() ([]byte, error) {
	type wire struct {
		ThresholdSeconds int64             `json:"threshold_seconds"`
		Observation      fleet.Observation `json:"location"`
	}
	return json.Marshal(wire{
		ThresholdSeconds: int64(r.Threshold / time.Second),
		Observation:      r.Observation,
	})
}

// UnmarshalJSON reads the json form written by MarshalJSON
func (r *Reference) UnmarshalJSON(data []byte) error {
	var w struct {
		ThresholdSeconds int64             `json:"threshold_seconds"`
		Observation      fleet.Observation `json:"location"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Threshold = time.Duration(w.ThresholdSeconds) * time.Second
	r.Observation = w.Observation
	return nil
}

// References holds the newest observation of a trail and one Reference for each threshold that could be satisfied.
// Thresholds without a qualifying observation are absent.
type References struct {
	Now  fleet.Observation `json:"now"`
	Past []Reference       `json:"past"`
}

// At returns the Reference observation for threshold, false if the trail is not old enough
func (r *References) At(threshold time.Duration) (fleet.Observation, bool) {
	for _, reference := range r.Past {
		if reference.Threshold == threshold {
			return reference.Observation, true
		}
	}
	return fleet.Observation{}, false
}

// timedObservation caches the parsed timestamp of an observation while sorting
type timedObservation struct {
	unix        int64
	observation fleet.Observation
}

// Sample finds the newest observation in locations and, for each threshold, the first observation scanning
// newest to oldest whose age relative to the newest is at least the threshold.
// This is the most recent observation that is at least threshold old, not the one nearest to the threshold.
// locations is not modified.
func Sample(locations []fleet.Observation, thresholds []time.Duration) (References, error) {
	if len(locations) == 0 {
		return References{}, ErrEmptyTrail
	}
	sorted := make([]timedObservation, 0, len(locations))
	for i, location := range locations {
		unix, err := location.Unix()
		if err != nil {
			return References{}, fmt.Errorf("%w: location %d of vehicle %s: %w",
				ErrMalformedInput, i, location.VehicleId, err)
		}
		sorted = append(sorted, timedObservation{unix: unix, observation: location})
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].unix > sorted[j].unix
	})

	now := sorted[0]
	result := References{
		Now:  now.observation,
		Past: make([]Reference, 0, len(thresholds)),
	}
	for _, threshold := range thresholds {
		for _, candidate := range sorted {
			if time.Duration(now.unix-candidate.unix)*time.Second >= threshold {
				result.Past = append(result.Past, Reference{
					Threshold:   threshold,
					Observation: candidate.observation,
				})
				break
			}
		}
	}
	return result, nil
}
