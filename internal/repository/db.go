package repository

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/sunksun/mekong-fish-payments/internal/config"
)

// Open connects to the configured database and applies pending migrations
// when cfg.Migrate is set.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite" {
		// one writer; the commit transaction must not interleave with reads
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.Migrate {
		if err := Migrate(db, cfg.Driver); err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}
