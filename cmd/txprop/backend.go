package main

import (
	"context"
	"time"

	"github.com/nikmy/txprop/internal/member"
	"github.com/nikmy/txprop/internal/order"
	"github.com/nikmy/txprop/internal/repo"
	"github.com/nikmy/txprop/internal/storage"
	"github.com/nikmy/txprop/internal/store/memory"
	"github.com/nikmy/txprop/internal/store/mongo"
	"github.com/nikmy/txprop/internal/store/postgres"
	"github.com/nikmy/txprop/internal/store/sqldb"
	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/logger"
	"github.com/nikmy/txprop/pkg/txn"
)

const (
	membersCollection = "members"
	logsCollection    = "logs"
	ordersCollection  = "orders"

	defaultSnapshotInterval = time.Minute
)

type backend struct {
	provider txn.Provider

	members repo.Repo[member.Member]
	logs    repo.Repo[member.Log]
	orders  repo.Repo[order.Order]

	// run keeps background work of the backend going until ctx is done
	run   func(ctx context.Context) error
	close func(ctx context.Context) error
}

func newBackend(ctx context.Context, cfg *Config, log logger.Logger) (*backend, error) {
	switch cfg.Backend {
	case BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, errors.WrapFail(err, "init postgres pool")
		}

		p := postgres.New(pool, log)
		return &backend{
			provider: p,
			members:  repo.NewJSON[member.Member](p.Table(membersCollection)),
			logs:     repo.NewJSON[member.Log](p.Table(logsCollection)),
			orders:   repo.NewJSON[order.Order](p.Table(ordersCollection)),
			run:      waitDone,
			close: func(context.Context) error {
				p.Close()
				return nil
			},
		}, nil

	case BackendMySQL:
		db, err := sqldb.Open(ctx, cfg.MySQL)
		if err != nil {
			return nil, errors.WrapFail(err, "init mysql")
		}

		p := sqldb.New(db, log)
		return &backend{
			provider: p,
			members:  repo.NewJSON[member.Member](p.Table(membersCollection)),
			logs:     repo.NewJSON[member.Log](p.Table(logsCollection)),
			orders:   repo.NewJSON[order.Order](p.Table(ordersCollection)),
			run:      waitDone,
			close:    func(context.Context) error { return p.Close() },
		}, nil

	case BackendMongo:
		p, err := mongo.Connect(ctx, cfg.Mongo, log)
		if err != nil {
			return nil, errors.WrapFail(err, "init mongo")
		}

		return &backend{
			provider: p,
			members:  mongo.NewRepo[member.Member](p, membersCollection),
			logs:     mongo.NewRepo[member.Log](p, logsCollection),
			orders:   mongo.NewRepo[order.Order](p, ordersCollection),
			run:      waitDone,
			close:    p.Close,
		}, nil

	default:
		store := memory.New(cfg.Memory, log)

		run := waitDone
		if cfg.Memory.SnapshotFile != "" {
			interval := cfg.Memory.SnapshotInterval
			if interval <= 0 {
				interval = defaultSnapshotInterval
			}

			snapshots := storage.NewFileStorage[memory.Record](
				cfg.Memory.SnapshotFile,
				interval,
				store,
				log,
			)

			err := snapshots.Load()
			if err != nil {
				return nil, errors.WrapFail(err, "load memory snapshot")
			}
			run = snapshots.Run
		}

		return &backend{
			provider: store,
			members:  repo.NewJSON[member.Member](store.Table(membersCollection)),
			logs:     repo.NewJSON[member.Log](store.Table(logsCollection)),
			orders:   repo.NewJSON[order.Order](store.Table(ordersCollection)),
			run:      run,
			close:    func(context.Context) error { return nil },
		}, nil
	}
}

func waitDone(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
