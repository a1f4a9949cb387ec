package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/logger"
)

func Connect(ctx context.Context, cfg Config, log logger.Logger) (*Provider, error) {
	opts := options.Client().
		ApplyURI(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetMinPoolSize(cfg.Pool.MinSize).
		SetMaxPoolSize(cfg.Pool.MaxSize)

	if cfg.Auth.Username != "" {
		opts.SetAuth(options.Credential{
			Username: cfg.Auth.Username,
			Password: cfg.Auth.Password,
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.WrapFail(err, "connect to mongo db")
	}

	return &Provider{
		client: client,
		db:     client.Database(cfg.Database),
		log:    log.With("mongo"),
	}, nil
}

func (p *Provider) Close(ctx context.Context) error {
	return errors.WrapFail(p.client.Disconnect(ctx), "close mongo db connection")
}
