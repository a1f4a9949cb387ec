package txn

import "context"

// Synchronization is notified when the physical transaction
// it was registered on completes.
type Synchronization interface {
	AfterCommit(ctx context.Context)
	AfterCompletion(ctx context.Context, state State)
}

// SyncFuncs adapts plain functions to Synchronization, nil ones are skipped.
type SyncFuncs struct {
	OnCommit     func(ctx context.Context)
	OnCompletion func(ctx context.Context, state State)
}

func (f SyncFuncs) AfterCommit(ctx context.Context) {
	if f.OnCommit != nil {
		f.OnCommit(ctx)
	}
}

func (f SyncFuncs) AfterCompletion(ctx context.Context, state State) {
	if f.OnCompletion != nil {
		f.OnCompletion(ctx, state)
	}
}

func RegisterSynchronization(ctx context.Context, sync Synchronization) error {
	c, ok := FromContext(ctx)
	if !ok {
		return ErrNoCoordinator
	}
	return c.RegisterSynchronization(sync)
}
