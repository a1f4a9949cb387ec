package txn

import (
	"context"

	"github.com/nikmy/txprop/pkg/errors"
)

var errExhausted = errors.Error("no spare connections")

type fakeConn struct {
	id        int
	opts      Options
	began     int
	commits   int
	rollbacks int
}

func (f *fakeConn) Begin(_ context.Context, opts Options) error {
	f.began++
	f.opts = opts
	return nil
}

func (f *fakeConn) Commit(context.Context) error {
	f.commits++
	return nil
}

func (f *fakeConn) Rollback(context.Context) error {
	f.rollbacks++
	return nil
}

type fakeProvider struct {
	max      int
	live     int
	conns    []*fakeConn
	released []*fakeConn
}

func (p *fakeProvider) Acquire(context.Context) (Conn, error) {
	if p.max > 0 && p.live >= p.max {
		return nil, errExhausted
	}
	p.live++
	conn := &fakeConn{id: len(p.conns)}
	p.conns = append(p.conns, conn)
	return conn, nil
}

func (p *fakeProvider) Release(_ context.Context, conn Conn) error {
	p.live--
	p.released = append(p.released, conn.(*fakeConn))
	return nil
}

func (p *fakeProvider) commits() int {
	total := 0
	for _, c := range p.conns {
		total += c.commits
	}
	return total
}

func (p *fakeProvider) rollbacks() int {
	total := 0
	for _, c := range p.conns {
		total += c.rollbacks
	}
	return total
}
