package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a pgxpool-backed Cache for gateway-class devices that already
// run alongside a local or fleet Postgres instance, keeping the last
// successful introspection string in a single-row table keyed by device ID.
type Postgres struct {
	pool     *pgxpool.Pool
	deviceID string
}

// NewPostgres returns a Postgres-backed cache scoped to deviceID. Callers
// are expected to have already run the schema migration creating
// device_introspection_cache(device_id text primary key, introspection
// text not null).
func NewPostgres(pool *pgxpool.Pool, deviceID string) *Postgres {
	return &Postgres{pool: pool, deviceID: deviceID}
}

func (p *Postgres) Store(ctx context.Context, introspection string) error {
	const query = `
		INSERT INTO device_introspection_cache (device_id, introspection)
		VALUES ($1, $2)
		ON CONFLICT (device_id) DO UPDATE SET introspection = EXCLUDED.introspection
	`
	if _, err := p.pool.Exec(ctx, query, p.deviceID, introspection); err != nil {
		return fmt.Errorf("cache.Postgres.Store: %w", err)
	}
	return nil
}

func (p *Postgres) Check(ctx context.Context, introspection string) (Status, error) {
	const query = `SELECT introspection FROM device_introspection_cache WHERE device_id = $1`

	var stored string
	err := p.pool.QueryRow(ctx, query, p.deviceID).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFound, nil
	}
	if err != nil {
		return NotFound, fmt.Errorf("cache.Postgres.Check: %w", err)
	}
	if stored == introspection {
		return Fresh, nil
	}
	return Outdated, nil
}
