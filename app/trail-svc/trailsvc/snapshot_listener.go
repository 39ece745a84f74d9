package trailsvc

import (
	"encoding/json"
	logger "log"
	"sync"

	"github.com/OpenTransitTools/fleettrail/business/data/fleet"
	"github.com/nats-io/nats.go"
)

//runSnapshotListener starts NATS subscription on snapshotSubject for fleet.Snapshot messages.
//Store results in history. Ends NATS subscription and returns on shutdownSignal
func runSnapshotListener(
	log *logger.Logger,
	wg *sync.WaitGroup,
	natsConn *nats.Conn,
	history *snapshotHistory,
	snapshotSubject string,
	shutdownSignal chan bool,
	failed chan error) {
	defer wg.Done()

	ch := make(chan *nats.Msg, 64)
	log.Printf("Subscribing to snapshots on subject:%s on nats: %v\n", snapshotSubject, natsConn.Servers())
	sub, err := natsConn.ChanSubscribe(snapshotSubject, ch)
	if err != nil {
		log.Printf("Unable to establish subscription to nats server: %v\n", err)
		failed <- err
		return
	}

	for {
		select {
		case msg := <-ch:
			processSnapshotFromMsg(log, msg, history)
		case <-shutdownSignal:
			log.Printf("ending snapshot listener on shutdown signal\n")
			log.Printf("unsubscribing to nats\n")
			err = sub.Unsubscribe()
			if err != nil {
				log.Printf("Error unsubscribing to nats:%s", err)
			}
			return
		}
	}
}

//processSnapshotFromMsg un-marshal fleet.Snapshot from nats.Msg and store result in history
func processSnapshotFromMsg(log *logger.Logger, msg *nats.Msg, history *snapshotHistory) {
	var snapshot fleet.Snapshot
	err := json.Unmarshal(msg.Data, &snapshot)
	if err != nil {
		log.Printf("error parsing Snapshot: %s, payload:%s", err, string(msg.Data))
		return
	}
	added, err := history.addSnapshot(snapshot)
	if err != nil {
		log.Printf("discarding malformed Snapshot %s: %v", snapshot.Id, err)
		return
	}
	if !added {
		log.Printf("discarding Snapshot %s at %s, not newer than history", snapshot.Id, snapshot.Timestamp)
	}
}
