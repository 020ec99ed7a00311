package main

import (
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"github.com/hetulpatel/pricearb/internal/app"
	"github.com/hetulpatel/pricearb/internal/config"
	"github.com/hetulpatel/pricearb/internal/storage/migrations"
	"github.com/hetulpatel/pricearb/internal/storage/sqlite"
)

func main() {
	action := "up"
	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	m, closeFn, err := open(cfg.Database)
	if err != nil {
		log.Fatalf("open migrator: %v", err)
	}
	defer closeFn()

	switch action {
	case "up":
		err = migrations.Up(m)
	case "down":
		err = migrations.Down(m)
	case "version":
	default:
		log.Fatalf("unknown action %q (want up, down or version)", action)
	}
	if err != nil {
		log.Fatalf("%s: %v", action, err)
	}

	version, dirty, err := migrations.Version(m)
	if err != nil {
		log.Fatalf("version: %v", err)
	}
	log.Printf("%s schema at version %d (dirty=%v)", cfg.Database.Driver, version, dirty)
}

func open(cfg config.DatabaseConfig) (*migrate.Migrate, func(), error) {
	switch cfg.Driver {
	case "", "sqlite":
		store, err := sqlite.Open(sqlite.Config{Path: cfg.SQLitePath, QueryTimeout: cfg.QueryTimeout.Duration})
		if err != nil {
			return nil, nil, err
		}
		m, err := migrations.SQLite(store.DB())
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		return m, func() { store.Close() }, nil
	case "postgres":
		m, err := migrations.Postgres(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return m, func() { m.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
