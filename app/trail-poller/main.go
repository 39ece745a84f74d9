package main

import (
	"fmt"
	logger "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/OpenTransitTools/fleettrail/app/trail-poller/poller"
	"github.com/OpenTransitTools/fleettrail/foundation/database"
	"github.com/ardanlabs/conf"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "TRAIL_POLLER : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	var cfg struct {
		conf.Version
		Args conf.Args
		DB   struct {
			Enabled               bool   `conf:"default:false"`
			User                  string `conf:"default:postgres"`
			Password              string `conf:"default:postgres,noprint"`
			Host                  string `conf:"default:0.0.0.0"`
			Name                  string `conf:"default:postgres"`
			DisableTLS            bool   `conf:"default:true"`
			MaxOpenConns          int    `conf:"default:4"`
			RetainSnapshotSeconds int    `conf:"default:21600"`
		}
		NATS struct {
			Enabled         bool   `conf:"default:true"`
			Url             string `conf:"default:nats://localhost:4222"`
			SnapshotSubject string `conf:"default:fleet-snapshots"`
		}
		GTFS struct {
			VehiclePositionsUrl       string `conf:"default:https://api.tmb.cat/v1/transit/gtfs-rt/vehicle-positions"`
			ApiKey                    string `conf:"noprint"`
			ApiKeyHeader              string `conf:"default:x-api-key"`
			StaticGTFSUrl             string `conf:"default:https://api.tmb.cat/v1/static/datasets/gtfs.zip"`
			TempDir                   string `conf:"default:/tmp/trail-poller"`
			LoadEverySeconds          int    `conf:"default:30"`
			RefreshRoutesEverySeconds int    `conf:"default:3600"`
			WatchedRouteIds           []string
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Poll gtfs-rt vehicle positions into fleet snapshots"
	const prefix = "POLLER"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			printUsage(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	// =========================================================================
	// Start Database

	var db *sqlx.DB
	if cfg.DB.Enabled {
		log.Println("main: Initializing database support")

		db, err = database.Open(database.Config{
			User:         cfg.DB.User,
			Password:     cfg.DB.Password,
			Host:         cfg.DB.Host,
			Name:         cfg.DB.Name,
			DisableTLS:   cfg.DB.DisableTLS,
			MaxOpenConns: cfg.DB.MaxOpenConns,
		})
		if err != nil {
			return fmt.Errorf("connecting to db: %w", err)
		}
		defer func() {
			log.Printf("main: Database Stopping : %s", cfg.DB.Host)
			err = db.Close()
			if err != nil {
				log.Printf("main: error closing database: %v", err)
			}
		}()
	}

	// =========================================================================
	// Start NATS

	var natsPublisher poller.NatsPublisher
	if cfg.NATS.Enabled {
		log.Printf("main: Connecting to NATS at %s", cfg.NATS.Url)
		natsConn, err := nats.Connect(cfg.NATS.Url, nats.Name("trail-poller"))
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer func() {
			log.Printf("main: NATS Stopping : %s", cfg.NATS.Url)
			natsConn.Close()
		}()
		natsPublisher = natsConn
	}

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	return poller.RunSnapshotPollLoop(log, db, natsPublisher, poller.Config{
		VehiclePositionsUrl:   cfg.GTFS.VehiclePositionsUrl,
		ApiKey:                cfg.GTFS.ApiKey,
		ApiKeyHeader:          cfg.GTFS.ApiKeyHeader,
		StaticGTFSUrl:         cfg.GTFS.StaticGTFSUrl,
		TempDir:               cfg.GTFS.TempDir,
		LoadEverySeconds:      cfg.GTFS.LoadEverySeconds,
		RefreshRoutesSeconds:  cfg.GTFS.RefreshRoutesEverySeconds,
		WatchedRouteIds:       cfg.GTFS.WatchedRouteIds,
		SnapshotSubject:       cfg.NATS.SnapshotSubject,
		RetainSnapshotSeconds: cfg.DB.RetainSnapshotSeconds,
	}, shutdown)

}

func printUsage(confUsage string) {
	fmt.Println(confUsage)
}
