package fleet

import (
	"fmt"
	"time"

	"github.com/OpenTransitTools/fleettrail/foundation/database"
	"github.com/jmoiron/sqlx"
)

// snapshotRow is the fleet_snapshot table record
type snapshotRow struct {
	Id        string    `db:"id"`
	Timestamp int64     `db:"ts"`
	CreatedAt time.Time `db:"created_at"`
}

// observationRow is the fleet_observation table record. Sequence preserves the order of locations in the snapshot
type observationRow struct {
	SnapshotId     string  `db:"snapshot_id"`
	Sequence       int     `db:"sequence"`
	VehicleId      string  `db:"vehicle_id"`
	Lat            float64 `db:"lat"`
	Lon            float64 `db:"lon"`
	Timestamp      int64   `db:"ts"`
	RouteId        string  `db:"route_id"`
	RouteShortName string  `db:"route_short_name"`
	RouteLongName  string  `db:"route_long_name"`
}

func (r *observationRow) observation() Observation {
	return Observation{
		VehicleId: r.VehicleId,
		Lat:       Coordinate(r.Lat),
		Lon:       Coordinate(r.Lon),
		Timestamp: FormatTimestamp(r.Timestamp),
		Route: RouteInfo{
			RouteId:   r.RouteId,
			ShortName: r.RouteShortName,
			LongName:  r.RouteLongName,
		},
	}
}

// makeObservationRows converts the Snapshot's locations into observationRows
func makeObservationRows(snapshot *Snapshot) ([]*observationRow, error) {
	rows := make([]*observationRow, 0, len(snapshot.Locations))
	for i, location := range snapshot.Locations {
		ts, err := ParseTimestamp(location.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("location %d of snapshot %s: %w", i, snapshot.Id, err)
		}
		if location.Lat == nil || location.Lon == nil {
			return nil, fmt.Errorf("location %d of snapshot %s is missing a coordinate", i, snapshot.Id)
		}
		rows = append(rows, &observationRow{
			SnapshotId:     snapshot.Id,
			Sequence:       i,
			VehicleId:      location.VehicleId,
			Lat:            *location.Lat,
			Lon:            *location.Lon,
			Timestamp:      ts,
			RouteId:        location.Route.RouteId,
			RouteShortName: location.Route.ShortName,
			RouteLongName:  location.Route.LongName,
		})
	}
	return rows, nil
}

// RecordSnapshot saves the Snapshot and all its locations in one transaction
func RecordSnapshot(snapshot *Snapshot, db *sqlx.DB) error {
	if len(snapshot.Id) == 0 {
		return fmt.Errorf("snapshot at %s has no id", snapshot.Timestamp)
	}
	ts, err := snapshot.Unix()
	if err != nil {
		return err
	}
	observations, err := makeObservationRows(snapshot)
	if err != nil {
		return err
	}

	return database.WithinTran(db, func(tx *sqlx.Tx) error {
		statementString := tx.Rebind("insert into fleet_snapshot (id, ts, created_at) " +
			"values (:id, :ts, :created_at)")
		_, err := tx.NamedExec(statementString, &snapshotRow{
			Id:        snapshot.Id,
			Timestamp: ts,
			CreatedAt: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("unable to record snapshot %s: %w", snapshot.Id, err)
		}
		if len(observations) == 0 {
			return nil
		}
		statementString = "insert into fleet_observation " +
			"(snapshot_id, " +
			"sequence, " +
			"vehicle_id, " +
			"lat, " +
			"lon, " +
			"ts, " +
			"route_id, " +
			"route_short_name, " +
			"route_long_name) " +
			"values " +
			"(:snapshot_id, " +
			":sequence, " +
			":vehicle_id, " +
			":lat, " +
			":lon, " +
			":ts, " +
			":route_id, " +
			":route_short_name, " +
			":route_long_name)"
		_, err = tx.NamedExec(tx.Rebind(statementString), observations)
		if err != nil {
			return fmt.Errorf("unable to record %d observations for snapshot %s: %w",
				len(observations), snapshot.Id, err)
		}
		return nil
	})
}

// GetRecentSnapshots retrieves the newest limit snapshots, ordered newest first.
// Locations within each snapshot are in the order they were recorded
func GetRecentSnapshots(db *sqlx.DB, limit int) ([]Snapshot, error) {
	if limit < 1 {
		return []Snapshot{}, nil
	}
	var snapshotRows []snapshotRow
	err := db.Select(&snapshotRows, db.Rebind("select * from fleet_snapshot order by ts desc limit ?"), limit)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve fleet_snapshot rows, error: %w", err)
	}
	if len(snapshotRows) == 0 {
		return []Snapshot{}, nil
	}

	ids := make([]string, 0, len(snapshotRows))
	snapshots := make([]Snapshot, 0, len(snapshotRows))
	positionById := make(map[string]int)
	for i, row := range snapshotRows {
		ids = append(ids, row.Id)
		positionById[row.Id] = i
		snapshots = append(snapshots, Snapshot{
			Id:        row.Id,
			Timestamp: FormatTimestamp(row.Timestamp),
			Locations: []Observation{},
		})
	}

	statementString := "select * from fleet_observation where snapshot_id in (:snapshot_ids) " +
		"order by snapshot_id, sequence"
	rows, err := database.PrepareNamedQueryRowsFromMap(statementString, db, map[string]interface{}{
		"snapshot_ids": ids,
	})

	defer func() {
		if rows != nil {
			_ = rows.Close()
		}
	}()

	if err != nil {
		return nil, fmt.Errorf("unable to retrieve fleet_observation rows, error: %w", err)
	}

	for rows.Next() {
		row := observationRow{}
		if err = rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("unable to scan fleet_observation row, error: %w", err)
		}
		position, present := positionById[row.SnapshotId]
		if !present {
			continue
		}
		snapshots[position].Locations = append(snapshots[position].Locations, row.observation())
	}
	return snapshots, rows.Err()
}

// DeleteSnapshotsBefore removes all snapshots, and their observations, with a timestamp older than before.
// returns the number of snapshots removed
func DeleteSnapshotsBefore(db *sqlx.DB, before time.Time) (int64, error) {
	cutoff := before.Unix()
	var removed int64
	err := database.WithinTran(db, func(tx *sqlx.Tx) error {
		_, err := tx.Exec(tx.Rebind("delete from fleet_observation where snapshot_id in "+
			"(select id from fleet_snapshot where ts < ?)"), cutoff)
		if err != nil {
			return fmt.Errorf("unable to delete fleet_observation rows: %w", err)
		}
		result, err := tx.Exec(tx.Rebind("delete from fleet_snapshot where ts < ?"), cutoff)
		if err != nil {
			return fmt.Errorf("unable to delete fleet_snapshot rows: %w", err)
		}
		removed, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
