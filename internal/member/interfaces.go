package member

import (
	"context"

	"github.com/nikmy/txprop/internal/events"
)

type publisher interface {
	PublishAfterCommit(ctx context.Context, e events.Event) error
}
