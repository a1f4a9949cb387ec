package memory

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/samber/lo"

	"github.com/nikmy/txprop/internal/repo"
	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/txn"
)

// Conn applies writes right away when no transaction is running
// and buffers them until Commit otherwise. Reads see own writes.
type Conn struct {
	store    *Store
	released bool

	inTxn    bool
	readOnly bool
	writes   []modify
}

func (c *Conn) Begin(_ context.Context, opts txn.Options) error {
	if c.released {
		return ErrConnReleased
	}
	if c.inTxn {
		return ErrTxnActive
	}

	c.inTxn = true
	c.readOnly = opts.ReadOnly
	return nil
}

// Commit applies buffered writes. When that fails the transaction
// stays open with nothing applied, Rollback or Release discards it.
func (c *Conn) Commit(context.Context) error {
	if !c.inTxn {
		return ErrNoTxn
	}

	err := c.store.apply(c.writes)
	if err != nil {
		return errors.WrapFail(err, "apply writes")
	}
	c.store.stats.commits.Add(1)
	c.reset()
	return nil
}

func (c *Conn) Rollback(context.Context) error {
	if !c.inTxn {
		return ErrNoTxn
	}

	c.store.stats.rollbacks.Add(1)
	c.reset()
	return nil
}

func (c *Conn) reset() {
	c.inTxn = false
	c.readOnly = false
	c.writes = nil
}

func (c *Conn) Put(collection, id string, value []byte) error {
	return c.write(modify{key: Key{collection, id}, value: value})
}

// Insert is Put which fails with repo.ErrDuplicate if the row exists,
// either now or when the transaction commits.
func (c *Conn) Insert(collection, id string, value []byte) error {
	if _, found := c.Get(collection, id); found {
		return repo.ErrDuplicate
	}
	return c.write(modify{key: Key{collection, id}, value: value, insert: true})
}

func (c *Conn) Delete(collection, id string) (bool, error) {
	_, found := c.Get(collection, id)
	if !found {
		return false, nil
	}
	return true, c.write(modify{key: Key{collection, id}, delete: true})
}

func (c *Conn) write(m modify) error {
	if c.released {
		return ErrConnReleased
	}
	if c.readOnly {
		return ErrReadOnly
	}
	if !m.delete && !json.Valid(m.value) {
		return ErrNotJSON
	}

	if !c.inTxn {
		return c.store.apply([]modify{m})
	}

	c.writes = append(c.writes, m)
	return nil
}

func (c *Conn) Get(collection, id string) ([]byte, bool) {
	key := Key{collection, id}
	for i := len(c.writes) - 1; i >= 0; i-- {
		if c.writes[i].key == key {
			return c.writes[i].value, !c.writes[i].delete
		}
	}
	return c.store.get(key)
}

// Scan calls fn for every row of the collection in id order
// until fn returns false.
func (c *Conn) Scan(collection string, fn func(id string, value []byte) bool) {
	values := c.store.scan(collection)
	for _, m := range c.writes {
		if m.key.Collection != collection {
			continue
		}
		if m.delete {
			delete(values, m.key.ID)
			continue
		}
		values[m.key.ID] = m.value
	}

	ids := lo.Keys(values)
	slices.Sort(ids)
	for _, id := range ids {
		if !fn(id, values[id]) {
			return
		}
	}
}
