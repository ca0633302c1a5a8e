package postgres

import (
	"context"
	"fmt"

	"github.com/SergeyBogomolovv/checkout-service/internal/config"

	"github.com/XSAM/otelsql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const driverName = "postgres"

// New opens a traced connection pool. Queries show up as spans when a tracer
// provider is installed and are no-ops otherwise.
func New(ctx context.Context, cfg config.Postgres) (*sqlx.DB, error) {
	sqlDB, err := otelsql.Open(driverName, cfg.DSN(),
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	db := sqlx.NewDb(sqlDB, driverName)

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return db, nil
}
