package sqldb

import (
	"context"
	"database/sql"

	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/logger"
	"github.com/nikmy/txprop/pkg/txn"
)

var (
	ErrTxAlreadyExists = errors.Error("transaction already exists")
	ErrNoTx            = errors.Error("no transaction on connection")
	ErrForeignConn     = errors.Error("connection does not belong to the sql provider")
)

func New(db *sql.DB, log logger.Logger) *Provider {
	return &Provider{db: db, log: log.With("sqldb")}
}

// Provider pins a dedicated *sql.Conn for every acquired connection,
// so a transaction never hops between pooled sessions.
type Provider struct {
	db  *sql.DB
	log logger.Logger
}

func (p *Provider) Acquire(ctx context.Context) (txn.Conn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, errors.WrapFail(err, "get sql connection")
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

	return errors.Join(err, errors.WrapFail(conn.conn.Close(), "close sql connection"))
}

func (p *Provider) Close() error {
	return p.db.Close()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Conn struct {
	conn *sql.Conn
	tx   *sql.Tx
}

func (c *Conn) Begin(ctx context.Context, opts txn.Options) error {
	if c.tx != nil {
		return ErrTxAlreadyExists
	}

	tx, err := c.conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: opts.ReadOnly})
	if err != nil {
		return errors.WrapFail(err, "begin transaction")
	}

	c.tx = tx
	return nil
}

func (c *Conn) Commit(context.Context) error {
	if c.tx == nil {
		return ErrNoTx
	}

	err := c.tx.Commit()
	c.tx = nil
	return errors.WrapFail(err, "commit transaction")
}

func (c *Conn) Rollback(context.Context) error {
	if c.tx == nil {
		return ErrNoTx
	}

	err := c.tx.Rollback()
	c.tx = nil
	if errors.Is(err, sql.ErrTxDone) {
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
