package memory

import (
	"encoding/json"

	"github.com/google/btree"
)

type Key struct {
	Collection string
	ID         string
}

func (k Key) less(other Key) bool {
	if k.Collection != other.Collection {
		return k.Collection < other.Collection
	}
	return k.ID < other.ID
}

type row struct {
	key   Key
	value []byte
}

func (r row) Less(than btree.Item) bool {
	return r.key.less(than.(row).key)
}

// Record is a row as it is written to snapshots.
type Record struct {
	Collection string          `json:"collection"`
	Key        string          `json:"key"`
	Value      json.RawMessage `json:"value"`
}

func (r Record) ID() string {
	return r.Collection + "/" + r.Key
}

type modify struct {
	key   Key
	value []byte

	// insert fails the batch if the key exists by the time it is applied
	insert bool
	delete bool
}
