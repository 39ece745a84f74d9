// Package trailsvc keeps a bounded history of fleet snapshots and serves vehicle trails computed from it
package trailsvc

import (
	"fmt"
	logger "log"
	"os"
	"sync"
	"time"

	"github.com/OpenTransitTools/fleettrail/business/data/fleet"
	"github.com/OpenTransitTools/fleettrail/business/trail"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
)

// Config holds the settings of the trail service
type Config struct {
	HttpPort              int
	SnapshotSubject       string
	MaxSnapshots          int
	ExpireSnapshotSeconds int
	WindowSnapshots       int
	CacheSize             int
	CacheSeconds          int
	Style                 trail.Style
}

//StartServices seeds history from db when present, then brings up backgroundLoop, snapshotListener and
//webservice. Returns on shutdown signal or when the nats subscription cannot be established
func StartServices(log *logger.Logger,
	cfg Config,
	db *sqlx.DB,
	natsConn *nats.Conn,
	shutdownSignal chan os.Signal) error {

	//create shared container
	history := makeSnapshotHistory(cfg.MaxSnapshots)

	if db != nil {
		if err := seedHistory(log, db, history, cfg.MaxSnapshots); err != nil {
			return fmt.Errorf("seeding snapshot history: %w", err)
		}
	}

	if cfg.CacheSize < 1 {
		cfg.CacheSize = 1
	}
	handler := makeTrailHandler(log, history, cfg.Style.Apply(trail.Options{}), cfg.WindowSnapshots,
		cfg.CacheSize, time.Duration(cfg.CacheSeconds)*time.Second)

	wg := sync.WaitGroup{}

	//create shutdown channels
	backgroundLoopShutdown := make(chan bool, 1)
	snapshotListenerShutdown := make(chan bool, 1)
	webServiceShutdown := make(chan bool, 1)
	listenerFailed := make(chan error, 1)

	//start all child services
	wg.Add(3)
	go runBackgroundLoop(log, &wg, history, backgroundLoopShutdown, cfg.ExpireSnapshotSeconds)
	go runSnapshotListener(log, &wg, natsConn, history, cfg.SnapshotSubject, snapshotListenerShutdown,
		listenerFailed)
	go runWebService(log, &wg, handler, cfg.HttpPort, webServiceShutdown)

	var result error
	select {
	case <-shutdownSignal:
		log.Printf("Exiting on shutdown signal, shutting down subroutines")
		snapshotListenerShutdown <- true
	case err := <-listenerFailed:
		result = fmt.Errorf("subscribing to %s: %w", cfg.SnapshotSubject, err)
	}
	backgroundLoopShutdown <- true
	webServiceShutdown <- true
	wg.Wait()
	log.Printf("Subroutines shut down, exiting trail service")
	return result
}

//seedHistory loads the newest snapshots recorded in the database into history
func seedHistory(log *logger.Logger, db *sqlx.DB, history *snapshotHistory, limit int) error {
	recent, err := fleet.GetRecentSnapshots(db, limit)
	if err != nil {
		return err
	}
	added, err := history.addSnapshots(trail.Canonicalize(recent, trail.NewestFirst))
	if err != nil {
		return err
	}
	log.Printf("Seeded snapshot history with %d of %d recorded snapshots", added, len(recent))
	return nil
}

//runBackgroundLoop frequently expires old snapshots from history
func runBackgroundLoop(log *logger.Logger,
	wg *sync.WaitGroup,
	history *snapshotHistory,
	shutdownSignal chan bool,
	expireSnapshotSeconds int) {
	defer wg.Done()

	sleepChan := make(chan bool)

	loopDuration := time.Duration(3) * time.Second
	sleep := loopDuration

	for {

		go func() {
			time.Sleep(sleep)
			sleepChan <- true
		}()

		select {
		case <-shutdownSignal:
			log.Printf("Exiting background loop on shutdown signal")

			return
		case <-sleepChan:
		}

		removed, currentSize := history.expireSnapshots(time.Now(), expireSnapshotSeconds)

		log.Printf("Snapshot history has %d snapshots. Removed %d old snapshots", currentSize, removed)

	}
}
