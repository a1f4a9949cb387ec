package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikmy/txprop/pkg/errors"
)

type Config struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

const createRowsTable = `CREATE TABLE IF NOT EXISTS txprop_rows (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data JSONB NOT NULL,
	PRIMARY KEY (collection, id)
)`

// NewPool connects to the database and makes sure the rows table exists.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errors.WrapFail(err, "parse postgres dsn")
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.WrapFail(err, "create postgres pool")
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, errors.WrapFail(err, "ping postgres")
	}

	_, err = pool.Exec(ctx, createRowsTable)
	if err != nil {
		pool.Close()
		return nil, errors.WrapFail(err, "create rows table")
	}

	return pool, nil
}
