// Package poller polls a gtfs-rt vehicle position feed and publishes fleet snapshots
package poller

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/OpenTransitTools/fleettrail/business/data/fleet"
	"github.com/OpenTransitTools/fleettrail/foundation/httpclient"
	"github.com/jmoiron/sqlx"
)

// maxRateLimitBackoff caps how many loop durations the poller waits after being rate limited
const maxRateLimitBackoff = 4

// Config holds the settings of the snapshot poll loop
type Config struct {
	VehiclePositionsUrl   string
	ApiKey                string
	ApiKeyHeader          string
	StaticGTFSUrl         string
	TempDir               string
	LoadEverySeconds      int
	RefreshRoutesSeconds  int
	WatchedRouteIds       []string
	SnapshotSubject       string
	RetainSnapshotSeconds int
}

// RunSnapshotPollLoop starts loop that polls the gtfs-rt feed, builds a fleet.Snapshot from watched routes
// and publishes it over nats and/or records it to the database. db and natsConnection may be nil to
// disable the destination.
func RunSnapshotPollLoop(log *log.Logger,
	db *sqlx.DB,
	natsConnection NatsPublisher,
	cfg Config,
	shutdownSignal chan os.Signal) error {

	if db == nil && natsConnection == nil {
		return fmt.Errorf("snapshots have no destination, enable nats or the database")
	}

	loopDuration := time.Duration(cfg.LoadEverySeconds) * time.Second
	source := feedSource{
		url:          cfg.VehiclePositionsUrl,
		apiKey:       cfg.ApiKey,
		apiKeyHeader: cfg.ApiKeyHeader,
	}
	routes := makeRouteCatalog(cfg.StaticGTFSUrl, cfg.TempDir,
		time.Duration(cfg.RefreshRoutesSeconds)*time.Second)
	watched := makeWatchedRoutes(cfg.WatchedRouteIds)
	publisher := makeSnapshotPublisher(log, db, natsConnection, cfg.SnapshotSubject)

	// buffered so the sleeping goroutine can finish after a shutdown
	sleepChan := make(chan bool, 1)
	sleep := time.Duration(0) //sleep for zero seconds the first time
	rateLimitedCount := 0

	for {

		go func() {
			time.Sleep(sleep)
			sleepChan <- true
		}()

		select {
		case <-shutdownSignal:
			log.Printf("Exiting on shutdown signal")
			return nil
		case <-sleepChan:
			break
		}

		//set default sleep for next loop in the event of an error after continue statements
		sleep = loopDuration

		// mark the time we start working
		start := time.Now()

		err := routes.refresh(log, start)
		if err != nil {
			log.Printf("error attempting to refresh routes. error:%v\n", err)
			if routes.size() == 0 {
				continue
			}
		}

		vehiclePositions, err := getVehiclePositions(log, source, start.Unix())
		if errors.Is(err, httpclient.ErrRateLimited) {
			rateLimitedCount++
			sleep = rateLimitedSleep(loopDuration, rateLimitedCount)
			log.Printf("vehicle position feed rate limited, waiting %s. error:%v\n", fmtDuration(sleep), err)
			continue
		}
		if err != nil {
			log.Printf("error attempting to get vehicle positions. error:%v\n", err)
			continue
		}
		rateLimitedCount = 0

		snapshot, stats := buildSnapshot(vehiclePositions, routes, watched, start)
		log.Printf("loaded %d vehicle positions, snapshot %s has %d locations. skipped: no route %d, "+
			"not watched %d, unknown route %d, no position %d\n", len(vehiclePositions), snapshot.Id,
			stats.included, stats.missingRoute, stats.notWatched, stats.unknownRoute, stats.missingPosition)

		publisher.publish(snapshot)

		if db != nil && cfg.RetainSnapshotSeconds > 0 {
			removeExpiredSnapshots(log, db, start.Add(-time.Duration(cfg.RetainSnapshotSeconds)*time.Second))
		}

		// attempt to run the loop every loopEverySeconds by subtracting the time it took to perform the work
		workTook := time.Now().Sub(start)

		log.Printf("work took %s\n", fmtDuration(workTook))

		// if the work took longer than loopEverySeconds don't sleep at all on the next loop
		if workTook >= loopDuration {
			sleep = time.Duration(0)
		} else {
			sleep = loopDuration - workTook
		}

	}
}

// rateLimitedSleep doubles the wait for each consecutive rate limited response, up to maxRateLimitBackoff loops
func rateLimitedSleep(loopDuration time.Duration, rateLimitedCount int) time.Duration {
	multiple := 1
	for i := 1; i < rateLimitedCount && multiple < maxRateLimitBackoff; i++ {
		multiple *= 2
	}
	if multiple > maxRateLimitBackoff {
		multiple = maxRateLimitBackoff
	}
	return loopDuration * time.Duration(multiple)
}

func removeExpiredSnapshots(log *log.Logger, db *sqlx.DB, before time.Time) {
	removed, err := fleet.DeleteSnapshotsBefore(db, before)
	if err != nil {
		log.Printf("error removing snapshots before %v. error:%v\n", before, err)
		return
	}
	if removed > 0 {
		log.Printf("removed %d snapshots recorded before %v\n", removed, before)
	}
}

//fmtDuration returns a string presentation of time.Duration for logging
func fmtDuration(d time.Duration) string {
	d = d.Round(time.Millisecond)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	mill := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, mill)
}
