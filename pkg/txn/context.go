package txn

import (
	"context"

	"github.com/nikmy/txprop/pkg/errors"
)

type coordinatorKey struct{}

func NewContext(parent context.Context, c *Coordinator) context.Context {
	return context.WithValue(parent, coordinatorKey{}, c)
}

func FromContext(ctx context.Context) (*Coordinator, bool) {
	c, ok := ctx.Value(coordinatorKey{}).(*Coordinator)
	return c, ok && c != nil
}

// IsActive reports whether ctx carries a coordinator
// with an active physical transaction.
func IsActive(ctx context.Context) bool {
	c, ok := FromContext(ctx)
	return ok && c.IsActive()
}

// CurrentConn returns the connection bound to the active
// physical transaction of the coordinator carried by ctx.
func CurrentConn(ctx context.Context) (Conn, bool) {
	c, ok := FromContext(ctx)
	if !ok {
		return nil, false
	}
	return c.Conn()
}

// contextBinder is implemented by connections which need their
// own handle in the context of every operation, like mongo sessions.
type contextBinder interface {
	BindContext(ctx context.Context) context.Context
}

// WithConn runs a persistence operation on the connection of the current
// transaction. Without one it borrows a connection from p for the single
// operation, so writes are applied immediately.
func WithConn(ctx context.Context, p Provider, do func(ctx context.Context, conn Conn) error) error {
	if conn, ok := CurrentConn(ctx); ok {
		return do(bindContext(ctx, conn), conn)
	}

	conn, err := p.Acquire(ctx)
	if err != nil {
		return errors.WrapFail(err, "acquire connection")
	}

	err = do(bindContext(ctx, conn), conn)
	return errors.Join(err, errors.WrapFail(p.Release(ctx, conn), "release connection"))
}

func bindContext(ctx context.Context, conn Conn) context.Context {
	if b, ok := conn.(contextBinder); ok {
		return b.BindContext(ctx)
	}
	return ctx
}
