package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/btree"

	"github.com/nikmy/txprop/internal/repo"
	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/logger"
	"github.com/nikmy/txprop/pkg/txn"
)

var (
	ErrPoolExhausted = errors.Error("all connections are in use")
	ErrForeignConn   = errors.Error("connection does not belong to the store")
	ErrConnReleased  = errors.Error("connection is released")
	ErrTxnActive     = errors.Error("connection already runs a transaction")
	ErrNoTxn         = errors.Error("connection does not run a transaction")
	ErrReadOnly      = errors.Error("write in read-only transaction")
	ErrNotJSON       = errors.Error("row value is not valid json")
)

const btreeDegree = 32

// Store keeps rows ordered by collection and id. It hands out a bounded
// number of connections and never blocks waiting for a free one.
type Store struct {
	mu   sync.RWMutex
	rows *btree.BTree

	slots chan struct{}
	stats stats
	log   logger.Logger
}

type stats struct {
	acquired  atomic.Int64
	commits   atomic.Int64
	rollbacks atomic.Int64
}

type Stats struct {
	Acquired  int64 `json:"acquired"`
	Live      int   `json:"live"`
	Commits   int64 `json:"commits"`
	Rollbacks int64 `json:"rollbacks"`
}

func New(cfg Config, log logger.Logger) *Store {
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}

	return &Store{
		rows:  btree.New(btreeDegree),
		slots: make(chan struct{}, maxConns),
		log:   log.With("memory_store"),
	}
}

func (s *Store) Acquire(context.Context) (txn.Conn, error) {
	select {
	case s.slots <- struct{}{}:
	default:
		return nil, ErrPoolExhausted
	}

	s.stats.acquired.Add(1)
	return &Conn{store: s}, nil
}

// Release returns the connection to the store. A transaction
// still running on it is discarded.
func (s *Store) Release(_ context.Context, c txn.Conn) error {
	conn, ok := c.(*Conn)
	if !ok || conn.store != s {
		return ErrForeignConn
	}
	if conn.released {
		return ErrConnReleased
	}

	if conn.inTxn {
		s.log.Warnf("releasing connection with running transaction, %d writes discarded", len(conn.writes))
		conn.reset()
		s.stats.rollbacks.Add(1)
	}

	conn.released = true
	<-s.slots
	return nil
}

func (s *Store) Stats() Stats {
	return Stats{
		Acquired:  s.stats.acquired.Load(),
		Live:      len(s.slots),
		Commits:   s.stats.commits.Load(),
		Rollbacks: s.stats.rollbacks.Load(),
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows.Len()
}

// apply writes the batch atomically. Nothing is written when
// an insert meets a key which is already there.
func (s *Store) apply(batch []modify) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists := make(map[Key]bool, len(batch))
	for _, m := range batch {
		present, seen := exists[m.key]
		if !seen {
			present = s.rows.Has(row{key: m.key})
		}
		if m.insert && present {
			return errors.Wrapf(repo.ErrDuplicate, "insert %s/%s", m.key.Collection, m.key.ID)
		}
		exists[m.key] = !m.delete
	}

	for _, m := range batch {
		if m.delete {
			s.rows.Delete(row{key: m.key})
			continue
		}
		s.rows.ReplaceOrInsert(row{key: m.key, value: m.value})
	}
	return nil
}

func (s *Store) get(key Key) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item := s.rows.Get(row{key: key})
	if item == nil {
		return nil, false
	}
	return item.(row).value, true
}

func (s *Store) scan(collection string) map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make(map[string][]byte)
	s.rows.AscendGreaterOrEqual(row{key: Key{Collection: collection}}, func(i btree.Item) bool {
		r := i.(row)
		if r.key.Collection != collection {
			return false
		}
		values[r.key.ID] = r.value
		return true
	})
	return values
}

// Snapshot returns all rows keyed by Record.ID.
func (s *Store) Snapshot() map[string]Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := make(map[string]Record, s.rows.Len())
	s.rows.Ascend(func(i btree.Item) bool {
		r := i.(row)
		rec := Record{Collection: r.key.Collection, Key: r.key.ID, Value: r.value}
		data[rec.ID()] = rec
		return true
	})
	return data
}

// Restore replaces the whole content of the store.
func (s *Store) Restore(data map[string]Record) {
	rows := btree.New(btreeDegree)
	for _, rec := range data {
		rows.ReplaceOrInsert(row{
			key:   Key{Collection: rec.Collection, ID: rec.Key},
			value: rec.Value,
		})
	}

	s.mu.Lock()
	s.rows = rows
	s.mu.Unlock()
}
