package sqldb

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/nikmy/txprop/pkg/errors"
)

type Config struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

const createRowsTable = `CREATE TABLE IF NOT EXISTS txprop_rows (
	collection VARCHAR(64) NOT NULL,
	id VARCHAR(64) NOT NULL,
	data JSON NOT NULL,
	PRIMARY KEY (collection, id)
)`

// Open connects to MySQL and makes sure the rows table exists.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, errors.WrapFail(err, "open mysql")
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	err = db.PingContext(ctx)
	if err == nil {
		_, err = db.ExecContext(ctx, createRowsTable)
	}
	if err != nil {
		return nil, errors.Join(errors.WrapFail(err, "prepare mysql"), db.Close())
	}

	return db, nil
}
