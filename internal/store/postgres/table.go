package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nikmy/txprop/internal/repo"
	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/txn"
)

const uniqueViolation = "23505"

func (p *Provider) Table(collection string) *Table {
	return &Table{provider: p, collection: collection}
}

type Table struct {
	provider   *Provider
	collection string
}

var _ repo.Table = (*Table)(nil)

func (t *Table) do(ctx context.Context, fn func(ctx context.Context, q querier) error) error {
	return txn.WithConn(ctx, t.provider, func(ctx context.Context, c txn.Conn) error {
		conn, ok := c.(*Conn)
		if !ok {
			return ErrForeignConn
		}
		return fn(ctx, conn.querier())
	})
}

func (t *Table) Insert(ctx context.Context, id string, value []byte) error {
	return t.do(ctx, func(ctx context.Context, q querier) error {
		_, err := q.Exec(ctx,
			`INSERT INTO txprop_rows (collection, id, data) VALUES ($1, $2, $3)`,
			t.collection, id, value,
		)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repo.ErrDuplicate
		}
		return errors.WrapFail(err, "insert row")
	})
}

func (t *Table) Replace(ctx context.Context, id string, value []byte) (replaced bool, err error) {
	err = t.do(ctx, func(ctx context.Context, q querier) error {
		tag, err := q.Exec(ctx,
			`UPDATE txprop_rows SET data = $3 WHERE collection = $1 AND id = $2`,
			t.collection, id, value,
		)
		replaced = tag.RowsAffected() == 1
		return errors.WrapFail(err, "update row")
	})
	return replaced, err
}

func (t *Table) Get(ctx context.Context, id string) (value []byte, found bool, err error) {
	err = t.do(ctx, func(ctx context.Context, q querier) error {
		err := q.QueryRow(ctx,
			`SELECT data FROM txprop_rows WHERE collection = $1 AND id = $2`,
			t.collection, id,
		).Scan(&value)

		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		found = err == nil
		return errors.WrapFail(err, "select row")
	})
	return value, found, err
}

func (t *Table) Scan(ctx context.Context, fn func(id string, value []byte) error) error {
	return t.do(ctx, func(ctx context.Context, q querier) error {
		rows, err := q.Query(ctx,
			`SELECT id, data FROM txprop_rows WHERE collection = $1 ORDER BY id`,
			t.collection,
		)
		if err != nil {
			return errors.WrapFail(err, "select rows")
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id    string
				value []byte
			)
			err = rows.Scan(&id, &value)
			if err != nil {
				return errors.WrapFail(err, "scan row")
			}

			err = fn(id, value)
			if err != nil {
				return err
			}
		}

		return errors.WrapFail(rows.Err(), "iterate rows")
	})
}

func (t *Table) Delete(ctx context.Context, id string) (deleted bool, err error) {
	err = t.do(ctx, func(ctx context.Context, q querier) error {
		tag, err := q.Exec(ctx,
			`DELETE FROM txprop_rows WHERE collection = $1 AND id = $2`,
			t.collection, id,
		)
		deleted = tag.RowsAffected() == 1
		return errors.WrapFail(err, "delete row")
	})
	return deleted, err
}
