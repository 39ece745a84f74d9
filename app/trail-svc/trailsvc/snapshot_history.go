package trailsvc

import (
	"fmt"
	"sync"
	"time"

	"github.com/OpenTransitTools/fleettrail/business/data/fleet"
)

// heldSnapshot is a fleet.Snapshot with its parsed timestamp
type heldSnapshot struct {
	unix     int64
	snapshot fleet.Snapshot
}

// snapshotHistory contains the most recent fleet.Snapshots, oldest first, and provides thread safe access to them
type snapshotHistory struct {
	mu           sync.Mutex
	maxSnapshots int
	held         []heldSnapshot
}

// makeSnapshotHistory snapshotHistory factory
func makeSnapshotHistory(maxSnapshots int) *snapshotHistory {
	return &snapshotHistory{
		maxSnapshots: maxSnapshots,
		held:         make([]heldSnapshot, 0),
	}
}

// addSnapshot stores a new snapshot, discarding it if it is malformed or not newer than the newest one held.
// the oldest snapshots are dropped once maxSnapshots are held
func (h *snapshotHistory) addSnapshot(snapshot fleet.Snapshot) (bool, error) {
	if err := snapshot.Validate(); err != nil {
		return false, err
	}
	unix, err := snapshot.Unix()
	if err != nil {
		return false, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.held) > 0 {
		newest := h.held[len(h.held)-1]
		if newest.unix >= unix {
			return false, nil
		}
	}
	h.held = append(h.held, heldSnapshot{unix: unix, snapshot: snapshot})
	if h.maxSnapshots > 0 && len(h.held) > h.maxSnapshots {
		overflow := len(h.held) - h.maxSnapshots
		h.held = append(make([]heldSnapshot, 0, h.maxSnapshots), h.held[overflow:]...)
	}
	return true, nil
}

// addSnapshots stores snapshots supplied oldest first, returning how many were kept
func (h *snapshotHistory) addSnapshots(snapshots []fleet.Snapshot) (int, error) {
	added := 0
	for _, snapshot := range snapshots {
		ok, err := h.addSnapshot(snapshot)
		if err != nil {
			return added, fmt.Errorf("adding snapshot %s: %w", snapshot.Timestamp, err)
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// snapshots returns a copy of the snapshots held, oldest first
func (h *snapshotHistory) snapshots() []fleet.Snapshot {
	results, _, _ := h.view()
	return results
}

// view returns a copy of the snapshots held, oldest first, with the state they were read at
func (h *snapshotHistory) view() (snapshots []fleet.Snapshot, newest int64, size int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	snapshots = make([]fleet.Snapshot, 0, len(h.held))
	for _, held := range h.held {
		snapshots = append(snapshots, held.snapshot)
	}
	if len(h.held) > 0 {
		newest = h.held[len(h.held)-1].unix
	}
	return snapshots, newest, len(h.held)
}

// latest returns the newest snapshot held
func (h *snapshotHistory) latest() (fleet.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.held) == 0 {
		return fleet.Snapshot{}, false
	}
	return h.held[len(h.held)-1].snapshot, true
}

// state returns the newest snapshot timestamp and the number of snapshots held.
// together they change whenever the history does
func (h *snapshotHistory) state() (newest int64, size int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.held) == 0 {
		return 0, 0
	}
	return h.held[len(h.held)-1].unix, len(h.held)
}

// expireSnapshots removes all snapshots that are older than "expireAfterSeconds".
// returns the number of snapshots that have been removed and how many are currently stored.
func (h *snapshotHistory) expireSnapshots(at time.Time, expireAfterSeconds int) (removed int, currentSize int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if expireAfterSeconds <= 0 {
		return 0, len(h.held)
	}
	cutoff := at.Unix() - int64(expireAfterSeconds)
	keep := 0
	for keep < len(h.held) && h.held[keep].unix < cutoff {
		keep++
	}
	previousSize := len(h.held)
	if keep > 0 {
		h.held = append(make([]heldSnapshot, 0, previousSize-keep), h.held[keep:]...)
	}
	currentSize = len(h.held)
	return previousSize - currentSize, currentSize
}
