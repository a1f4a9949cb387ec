package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nikmy/txprop/internal/repo"
	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/mongotools"
	"github.com/nikmy/txprop/pkg/txn"
)

type document[T any] struct {
	ID   string `bson:"_id"`
	Data T      `bson:"data"`
}

// NewRepo keeps items of one collection as {_id, data} documents.
func NewRepo[T any](p *Provider, collection string) repo.Repo[T] {
	return &mongoRepo[T]{provider: p, coll: p.db.Collection(collection)}
}

type mongoRepo[T any] struct {
	provider *Provider
	coll     *mongo.Collection
}

// do runs fn with the session context of the bound transaction.
func (m *mongoRepo[T]) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return txn.WithConn(ctx, m.provider, func(ctx context.Context, c txn.Conn) error {
		if _, ok := c.(*session); !ok {
			return ErrForeignConn
		}
		return fn(ctx)
	})
}

func (m *mongoRepo[T]) Insert(ctx context.Context, id string, item T) error {
	return m.do(ctx, func(ctx context.Context) error {
		_, err := m.coll.InsertOne(ctx, document[T]{ID: id, Data: item})
		if mongo.IsDuplicateKeyError(err) {
			return repo.ErrDuplicate
		}
		return errors.WrapFail(err, "insert document")
	})
}

func (m *mongoRepo[T]) Get(ctx context.Context, id string) (item T, found bool, err error) {
	err = m.do(ctx, func(ctx context.Context) error {
		var doc document[T]
		err := m.coll.FindOne(ctx, mongotools.ByID(id)).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		if err != nil {
			return errors.WrapFail(err, "find document")
		}

		item, found = doc.Data, true
		return nil
	})
	return item, found, err
}

func (m *mongoRepo[T]) Select(ctx context.Context, filters ...repo.Filter[T]) (selected []T, err error) {
	err = m.do(ctx, func(ctx context.Context) error {
		cur, err := m.coll.Find(ctx, mongotools.All())
		if err != nil {
			return errors.WrapFail(err, "find documents")
		}

		selected, err = mongotools.Collect(ctx, cur, func(doc document[T]) (T, bool) {
			return doc.Data, repo.Match(doc.Data, filters...)
		})
		return errors.WrapFail(err, "read documents")
	})
	return selected, err
}

func (m *mongoRepo[T]) Update(ctx context.Context, id string, update func(*T)) (updated bool, err error) {
	item, found, err := m.Get(ctx, id)
	if err != nil || !found {
		return false, err
	}

	update(&item)

	err = m.do(ctx, func(ctx context.Context) error {
		res, err := m.coll.UpdateOne(ctx,
			mongotools.ByID(id),
			mongotools.Set(mongotools.Field("data", item)),
		)
		if err != nil {
			return errors.WrapFail(err, "update document")
		}

		updated = res.MatchedCount == 1
		return nil
	})
	return updated, err
}

func (m *mongoRepo[T]) Delete(ctx context.Context, id string) (deleted bool, err error) {
	err = m.do(ctx, func(ctx context.Context) error {
		res, err := m.coll.DeleteOne(ctx, mongotools.ByID(id))
		if err != nil {
			return errors.WrapFail(err, "delete document")
		}

		deleted = res.DeletedCount == 1
		return nil
	})
	return deleted, err
}
