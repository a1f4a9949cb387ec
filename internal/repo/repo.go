package repo

import (
	"context"

	"github.com/nikmy/txprop/pkg/errors"
)

var (
	ErrDuplicate = errors.Error("item with this id already exists")
	ErrNotFound  = errors.Error("item not found")
)

// Repo is a collection of items of one type. Every call runs on the
// connection of the transaction bound to ctx, if there is one.
type Repo[T any] interface {
	Insert(ctx context.Context, id string, item T) error
	Get(ctx context.Context, id string) (item T, found bool, err error)
	Select(ctx context.Context, filters ...Filter[T]) (selected []T, err error)
	Update(ctx context.Context, id string, update func(*T)) (updated bool, err error)
	Delete(ctx context.Context, id string) (deleted bool, err error)
}

// Table is an untyped collection of JSON documents.
type Table interface {
	Insert(ctx context.Context, id string, value []byte) error
	Replace(ctx context.Context, id string, value []byte) (replaced bool, err error)
	Get(ctx context.Context, id string) (value []byte, found bool, err error)
	Scan(ctx context.Context, fn func(id string, value []byte) error) error
	Delete(ctx context.Context, id string) (deleted bool, err error)
}
