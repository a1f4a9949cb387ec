package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/logger"
	"github.com/nikmy/txprop/pkg/tools/await"
	"github.com/nikmy/txprop/pkg/txn"
)

type Event struct {
	Type    string    `json:"type"`
	Key     string    `json:"key"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

func NewKafkaPublisher(cfg Config, log logger.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 5 * time.Second,
	}

	return newPublisher(w, cfg, log.With("kafka_publisher"))
}

// NewLogPublisher only logs events, for setups without brokers.
func NewLogPublisher(log logger.Logger) *Publisher {
	log = log.With("event_log")
	return newPublisher(logWriter{log}, Config{}, log)
}

func newPublisher(w messageWriter, cfg Config, log logger.Logger) *Publisher {
	return &Publisher{
		writer:  w,
		retries: max(cfg.Retries, 0),
		backoff: cfg.Backoff,
		log:     log,
	}
}

type Publisher struct {
	writer  messageWriter
	retries int
	backoff time.Duration
	log     logger.Logger
}

func (p *Publisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return errors.WrapFail(err, "marshal event")
	}

	msg := kafka.Message{Key: []byte(e.Key), Value: value}
	for attempt := 0; ; attempt++ {
		err = p.writer.WriteMessages(ctx, msg)
		if err == nil || attempt >= p.retries {
			return errors.WrapFailf(err, "write %s event", e.Type)
		}

		p.log.Debugf("write %s event, attempt %d: %s", e.Type, attempt+1, err)
		if !await.After(p.backoff).Await(ctx) {
			return errors.WrapFailf(ctx.Err(), "write %s event", e.Type)
		}
	}
}

// PublishAfterCommit defers the event until the transaction bound to ctx
// commits, it is dropped on rollback. Without a transaction the event
// is published right away.
func (p *Publisher) PublishAfterCommit(ctx context.Context, e Event) error {
	if !txn.IsActive(ctx) {
		return p.Publish(ctx, e)
	}

	return txn.RegisterSynchronization(ctx, txn.SyncFuncs{
		OnCommit: func(ctx context.Context) {
			p.log.Error(p.Publish(ctx, e))
		},
		OnCompletion: func(_ context.Context, state txn.State) {
			if state == txn.StateRolledBack {
				p.log.Debugf("%s event for %s dropped on rollback", e.Type, e.Key)
			}
		},
	})
}

func (p *Publisher) Close() error {
	return errors.WrapFail(p.writer.Close(), "close event writer")
}

type logWriter struct {
	log logger.Logger
}

func (w logWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, msg := range msgs {
		w.log.Infof("event %s: %s", msg.Key, msg.Value)
	}
	return nil
}

func (logWriter) Close() error {
	return nil
}
