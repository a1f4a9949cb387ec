package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/logger"
	"github.com/nikmy/txprop/pkg/txn"
)

var ErrForeignConn = errors.Error("connection does not belong to the mongo provider")

// Provider hands out sessions, one mongo transaction per session.
type Provider struct {
	client *mongo.Client
	db     *mongo.Database
	log    logger.Logger
}

func (p *Provider) Acquire(context.Context) (txn.Conn, error) {
	s, err := p.client.StartSession(options.Session())
	if err != nil {
		return nil, errors.WrapFail(err, "start session")
	}
	return &session{s: s}, nil
}

// Release ends the session, which aborts a transaction left running.
func (p *Provider) Release(ctx context.Context, c txn.Conn) error {
	s, ok := c.(*session)
	if !ok {
		return ErrForeignConn
	}
	if s.running {
		p.log.Warnf("ending session with running transaction")
	}
	s.s.EndSession(ctx)
	return nil
}

type session struct {
	s       mongo.Session
	running bool
}

func (s *session) BindContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, s.s)
}

// Mongo has no read-only transactions, opts.ReadOnly is ignored.
func (s *session) Begin(context.Context, txn.Options) error {
	err := s.s.StartTransaction(
		options.Transaction().
			SetReadConcern(readconcern.Majority()).
			SetWriteConcern(writeconcern.Majority()),
	)
	if err != nil {
		return errors.WrapFail(err, "start transaction")
	}

	s.running = true
	return nil
}

func (s *session) Commit(ctx context.Context) error {
	err := s.s.CommitTransaction(ctx)
	s.running = false
	return errors.WrapFail(err, "commit transaction")
}

func (s *session) Rollback(ctx context.Context) error {
	err := s.s.AbortTransaction(ctx)
	s.running = false
	return errors.WrapFail(err, "abort transaction")
}
