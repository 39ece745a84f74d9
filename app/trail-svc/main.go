package main

import (
	"fmt"
	logger "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/OpenTransitTools/fleettrail/app/trail-svc/trailsvc"
	"github.com/OpenTransitTools/fleettrail/business/trail"
	"github.com/OpenTransitTools/fleettrail/foundation/database"
	"github.com/ardanlabs/conf"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "TRAIL_SVC : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	var cfg struct {
		conf.Version
		Args conf.Args
		Web  struct {
			Port int `conf:"default:3000"`
		}
		NATS struct {
			Url             string `conf:"default:nats://localhost:4222"`
			SnapshotSubject string `conf:"default:fleet-snapshots"`
		}
		DB struct {
			SeedFromDatabase bool   `conf:"default:false"`
			User             string `conf:"default:postgres"`
			Password         string `conf:"default:postgres,noprint"`
			Host             string `conf:"default:0.0.0.0"`
			Name             string `conf:"default:postgres"`
			DisableTLS       bool   `conf:"default:true"`
			MaxOpenConns     int    `conf:"default:4"`
		}
		History struct {
			MaxSnapshots          int `conf:"default:720"`
			ExpireSnapshotSeconds int `conf:"default:21600"`
		}
		Trail struct {
			WindowSnapshots int `conf:"default:24"`
			StyleFile       string
			CacheSize       int `conf:"default:64"`
			CacheSeconds    int `conf:"default:60"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Serve vehicle trails computed from recent fleet snapshots"
	const prefix = "TRAILSVC"
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

	style, err := trail.LoadStyle(cfg.Trail.StyleFile)
	if err != nil {
		return fmt.Errorf("loading trail style: %w", err)
	}

	// =========================================================================
	// Start Database

	var db *sqlx.DB
	if cfg.DB.SeedFromDatabase {
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

	log.Printf("main: Connecting to NATS at %s", cfg.NATS.Url)
	natsConn, err := nats.Connect(cfg.NATS.Url, nats.Name("trail-svc"))
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", err)
	}
	defer func() {
		log.Printf("main: NATS Stopping : %s", cfg.NATS.Url)
		natsConn.Close()
	}()

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	return trailsvc.StartServices(log, trailsvc.Config{
		HttpPort:              cfg.Web.Port,
		SnapshotSubject:       cfg.NATS.SnapshotSubject,
		MaxSnapshots:          cfg.History.MaxSnapshots,
		ExpireSnapshotSeconds: cfg.History.ExpireSnapshotSeconds,
		WindowSnapshots:       cfg.Trail.WindowSnapshots,
		CacheSize:             cfg.Trail.CacheSize,
		CacheSeconds:          cfg.Trail.CacheSeconds,
		Style:                 style,
	}, db, natsConn, shutdown)

}

func printUsage(confUsage string) {
	fmt.Println(confUsage)
}
