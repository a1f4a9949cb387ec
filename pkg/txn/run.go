package txn

import (
	"context"

	"github.com/nikmy/txprop/pkg/errors"
)

// Run executes do inside a logical transaction described by def, using
// the coordinator bound to ctx.
func Run(ctx context.Context, def Definition, do func(ctx context.Context) error) error {
	c, ok := FromContext(ctx)
	if !ok {
		return errors.Wrapf(ErrNoCoordinator, "run %q", def.Name)
	}
	return c.Run(ctx, def, do)
}

// Run begins a logical transaction, executes do and completes the
// transaction: rollback when do fails with an error not listed in
// def.NoRollbackFor, commit otherwise. A panic in do rolls back and
// is re-raised. The returned error carries the error of do and the
// completion one, whichever happened.
func (c *Coordinator) Run(ctx context.Context, def Definition, do func(ctx context.Context) error) error {
	status, err := c.Begin(ctx, def)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			if !status.completed {
				c.log.Warn(errors.WrapFail(c.Rollback(ctx, status), "roll back after panic"))
			}
			panic(r)
		}
	}()

	err = do(ctx)
	if err == nil {
		return c.completed(def, c.Commit(ctx, status))
	}

	if def.rollbackOn(err) {
		c.log.Debugf("Completing transaction [%s] after error: rolling back: %s", def.Name, err)
		return errors.Join(err, c.completed(def, c.Rollback(ctx, status)))
	}

	c.log.Debugf("Completing transaction [%s] after error: committing, %s is listed in no-rollback rules", def.Name, err)
	return errors.Join(err, c.completed(def, c.Commit(ctx, status)))
}

// completed reports transactions which do has begun and left open:
// they keep their connections and the one of def until completed.
func (c *Coordinator) completed(def Definition, err error) error {
	if errors.Is(err, ErrCompletionOrder) {
		c.log.Warnf("Transaction [%s] is left incomplete: nested transactions begun inside it are still open and keep their connections", def.Name)
	}
	return err
}
