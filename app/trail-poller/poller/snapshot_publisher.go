package poller

import (
	"encoding/json"
	"log"

	"github.com/OpenTransitTools/fleettrail/business/data/fleet"
	"github.com/jmoiron/sqlx"
)

// NatsPublisher is the part of *nats.Conn used to send snapshots
type NatsPublisher interface {
	Publish(subj string, data []byte) error
}

// snapshotPublisher takes snapshots built by the poller and sends them to their
// destinations (database and nats)
type snapshotPublisher struct {
	log              *log.Logger
	db               *sqlx.DB
	natsConnection   NatsPublisher
	subject          string
	recordToDatabase bool
	publishOverNats  bool
}

// makeSnapshotPublisher creates snapshotPublisher
func makeSnapshotPublisher(log *log.Logger,
	db *sqlx.DB,
	natsConnection NatsPublisher,
	subject string) *snapshotPublisher {
	return &snapshotPublisher{
		log:              log,
		db:               db,
		natsConnection:   natsConnection,
		subject:          subject,
		recordToDatabase: db != nil,
		publishOverNats:  natsConnection != nil,
	}
}

// publish sends fleet.Snapshot over NATS and records it to the database according to
// publishOverNats and recordToDatabase
func (s *snapshotPublisher) publish(snapshot *fleet.Snapshot) {
	if s.publishOverNats {
		s.sendOverNats(snapshot)
	}
	if s.recordToDatabase {
		s.record(snapshot)
	}
}

func (s *snapshotPublisher) sendOverNats(snapshot *fleet.Snapshot) {
	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		s.log.Printf("failed to marshal Snapshot in snapshotPublisher.sendOverNats, error:%v", err)
		return
	}
	err = s.natsConnection.Publish(s.subject, jsonData)
	if err != nil {
		s.log.Printf("failed to send Snapshot in snapshotPublisher.sendOverNats, error:%v", err)
	}
}

func (s *snapshotPublisher) record(snapshot *fleet.Snapshot) {
	err := fleet.RecordSnapshot(snapshot, s.db)
	if err != nil {
		s.log.Printf("Error saving snapshot %s at %s. error: %v", snapshot.Id, snapshot.Timestamp, err)
	}
}
