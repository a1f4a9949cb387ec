package repo

import (
	"context"
	"encoding/json"

	"github.com/nikmy/txprop/pkg/errors"
)

// NewJSON stores items as JSON documents in t.
func NewJSON[T any](t Table) Repo[T] {
	return jsonRepo[T]{t}
}

type jsonRepo[T any] struct {
	table Table
}

func (r jsonRepo[T]) Insert(ctx context.Context, id string, item T) error {
	value, err := json.Marshal(item)
	if err != nil {
		return errors.WrapFail(err, "marshal item")
	}
	return r.table.Insert(ctx, id, value)
}

func (r jsonRepo[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var item T

	value, found, err := r.table.Get(ctx, id)
	if err != nil || !found {
		return item, false, err
	}

	err = json.Unmarshal(value, &item)
	if err != nil {
		return item, false, errors.WrapFailf(err, "unmarshal item %s", id)
	}
	return item, true, nil
}

func (r jsonRepo[T]) Select(ctx context.Context, filters ...Filter[T]) ([]T, error) {
	var selected []T

	err := r.table.Scan(ctx, func(id string, value []byte) error {
		var item T
		err := json.Unmarshal(value, &item)
		if err != nil {
			return errors.WrapFailf(err, "unmarshal item %s", id)
		}

		if Match(item, filters...) {
			selected = append(selected, item)
		}
		return nil
	})
	return selected, err
}

func (r jsonRepo[T]) Update(ctx context.Context, id string, update func(*T)) (bool, error) {
	item, found, err := r.Get(ctx, id)
	if err != nil || !found {
		return false, err
	}

	update(&item)

	value, err := json.Marshal(item)
	if err != nil {
		return false, errors.WrapFail(err, "marshal item")
	}
	return r.table.Replace(ctx, id, value)
}

func (r jsonRepo[T]) Delete(ctx context.Context, id string) (bool, error) {
	return r.table.Delete(ctx, id)
}
