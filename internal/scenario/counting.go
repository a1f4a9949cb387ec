package scenario

import (
	"context"

	"github.com/nikmy/txprop/pkg/txn"
)

type counters struct {
	Acquired  int `json:"acquired"`
	Released  int `json:"released"`
	Commits   int `json:"commits"`
	Rollbacks int `json:"rollbacks"`
}

// countingProvider counts physical work done through the provider.
type countingProvider struct {
	base txn.Provider
	c    counters
}

func (p *countingProvider) Acquire(ctx context.Context) (txn.Conn, error) {
	conn, err := p.base.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	p.c.Acquired++
	return &countingConn{Conn: conn, c: &p.c}, nil
}

func (p *countingProvider) Release(ctx context.Context, conn txn.Conn) error {
	if counted, ok := conn.(*countingConn); ok {
		conn = counted.Conn
	}
	p.c.Released++
	return p.base.Release(ctx, conn)
}

type countingConn struct {
	txn.Conn
	c *counters
}

func (c *countingConn) Commit(ctx context.Context) error {
	c.c.Commits++
	return c.Conn.Commit(ctx)
}

func (c *countingConn) Rollback(ctx context.Context) error {
	c.c.Rollbacks++
	return c.Conn.Rollback(ctx)
}
