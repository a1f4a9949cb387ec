package memory

import (
	"context"

	"github.com/nikmy/txprop/internal/repo"
	"github.com/nikmy/txprop/pkg/txn"
)

func (s *Store) Table(collection string) *Table {
	return &Table{store: s, collection: collection}
}

// Table is a collection of the store working
// on the connection bound to the context.
type Table struct {
	store      *Store
	collection string
}

var _ repo.Table = (*Table)(nil)

func (t *Table) do(ctx context.Context, fn func(conn *Conn) error) error {
	return txn.WithConn(ctx, t.store, func(_ context.Context, c txn.Conn) error {
		conn, ok := c.(*Conn)
		if !ok || conn.store != t.store {
			return ErrForeignConn
		}
		return fn(conn)
	})
}

func (t *Table) Insert(ctx context.Context, id string, value []byte) error {
	return t.do(ctx, func(conn *Conn) error {
		return conn.Insert(t.collection, id, value)
	})
}

func (t *Table) Replace(ctx context.Context, id string, value []byte) (replaced bool, err error) {
	err = t.do(ctx, func(conn *Conn) error {
		if _, replaced = conn.Get(t.collection, id); !replaced {
			return nil
		}
		return conn.Put(t.collection, id, value)
	})
	return replaced, err
}

func (t *Table) Get(ctx context.Context, id string) (value []byte, found bool, err error) {
	err = t.do(ctx, func(conn *Conn) error {
		value, found = conn.Get(t.collection, id)
		return nil
	})
	return value, found, err
}

func (t *Table) Scan(ctx context.Context, fn func(id string, value []byte) error) error {
	return t.do(ctx, func(conn *Conn) error {
		var err error
		conn.Scan(t.collection, func(id string, value []byte) bool {
			err = fn(id, value)
			return err == nil
		})
		return err
	})
}

func (t *Table) Delete(ctx context.Context, id string) (deleted bool, err error) {
	err = t.do(ctx, func(conn *Conn) error {
		deleted, err = conn.Delete(t.collection, id)
		return err
	})
	return deleted, err
}
