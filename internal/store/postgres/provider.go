package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/logger"
	"github.com/nikmy/txprop/pkg/txn"
)

var (
	ErrTxAlreadyExists = errors.Error("transaction already exists")
	ErrNoTx            = errors.Error("no transaction on connection")
	ErrForeignConn     = errors.Error("connection does not belong to the postgres provider")
)

func New(pool *pgxpool.Pool, log logger.Logger) *Provider {
	return &Provider{pool: pool, log: log.With("postgres")}
}

// Provider lends pool connections, each able to run one pgx transaction.
type Provider struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

func (p *Provider) Acquire(ctx context.Context) (txn.Conn, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, errors.WrapFail(err, "acquire pool connection")
	}
	return &Conn{conn: conn}, nil
}

func (p *Provider) Release(ctx context.Context, c txn.Conn) error {
	conn, ok := c.(*Conn)
	if !ok {
		return ErrForeignConn
	}

	var err error
	if conn.tx != nil {
		p.log.Warnf("releasing connection with running transaction")
		err = conn.Rollback(ctx)
	}

	conn.conn.Release()
	return err
}

func (p *Provider) Close() {
	p.pool.Close()
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Conn struct {
	conn *pgxpool.Conn
	tx   pgx.Tx
}

func (c *Conn) Begin(ctx context.Context, opts txn.Options) error {
	if c.tx != nil {
		return ErrTxAlreadyExists
	}

	mode := pgx.ReadWrite
	if opts.ReadOnly {
		mode = pgx.ReadOnly
	}

	tx, err := c.conn.BeginTx(ctx, pgx.TxOptions{AccessMode: mode})
	if err != nil {
		return errors.WrapFail(err, "begin transaction")
	}

	c.tx = tx
	return nil
}

func (c *Conn) Commit(ctx context.Context) error {
	if c.tx == nil {
		return ErrNoTx
	}

	err := c.tx.Commit(ctx)
	c.tx = nil
	return errors.WrapFail(err, "commit transaction")
}

func (c *Conn) Rollback(ctx context.Context) error {
	if c.tx == nil {
		return ErrNoTx
	}

	err := c.tx.Rollback(ctx)
	c.tx = nil
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return errors.WrapFail(err, "rollback transaction")
}

func (c *Conn) querier() querier {
	if c.tx != nil {
		return c.tx
	}
	return c.conn
}
