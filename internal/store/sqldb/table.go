package sqldb

import (
	"context"
	"database/sql"

	"github.com/go-sql-driver/mysql"

	"github.com/nikmy/txprop/internal/repo"
	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/txn"
)

const errDupEntry = 1062

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
		_, err := q.ExecContext(ctx,
			`INSERT INTO txprop_rows (collection, id, data) VALUES (?, ?, ?)`,
			t.collection, id, value,
		)

		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == errDupEntry {
			return repo.ErrDuplicate
		}
		return errors.WrapFail(err, "insert row")
	})
}

func (t *Table) Replace(ctx context.Context, id string, value []byte) (replaced bool, err error) {
	err = t.do(ctx, func(ctx context.Context, q querier) error {
		// MySQL reports zero affected rows for an unchanged value
		var exists int
		err := q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM txprop_rows WHERE collection = ? AND id = ?`,
			t.collection, id,
		).Scan(&exists)
		if err != nil || exists == 0 {
			return errors.WrapFail(err, "check row")
		}

		_, err = q.ExecContext(ctx,
			`UPDATE txprop_rows SET data = ? WHERE collection = ? AND id = ?`,
			value, t.collection, id,
		)
		replaced = err == nil
		return errors.WrapFail(err, "update row")
	})
	return replaced, err
}

func (t *Table) Get(ctx context.Context, id string) (value []byte, found bool, err error) {
	err = t.do(ctx, func(ctx context.Context, q querier) error {
		err := q.QueryRowContext(ctx,
			`SELECT data FROM txprop_rows WHERE collection = ? AND id = ?`,
			t.collection, id,
		).Scan(&value)

		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		found = err == nil
		return errors.WrapFail(err, "select row")
	})
	return value, found, err
}

func (t *Table) Scan(ctx context.Context, fn func(id string, value []byte) error) error {
	return t.do(ctx, func(ctx context.Context, q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT id, data FROM txprop_rows WHERE collection = ? ORDER BY id`,
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
		res, err := q.ExecContext(ctx,
			`DELETE FROM txprop_rows WHERE collection = ? AND id = ?`,
			t.collection, id,
		)
		if err != nil {
			return errors.WrapFail(err, "delete row")
		}

		n, err := res.RowsAffected()
		deleted = n == 1
		return errors.WrapFail(err, "count deleted rows")
	})
	return deleted, err
}
