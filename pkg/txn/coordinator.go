package txn

import (
	"context"
	"sync/atomic"

	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/logger"
)

var txnSeq atomic.Uint64

// Coordinator maps logical transactions of one execution context onto
// physical ones. It is not safe for concurrent use: create one per
// goroutine or request and pass it with NewContext.
type Coordinator struct {
	provider Provider
	log      logger.Logger
	current  *physicalTxn
}

func NewCoordinator(provider Provider, log logger.Logger) *Coordinator {
	return &Coordinator{
		provider: provider,
		log:      log.With("txn"),
	}
}

// Begin starts a logical transaction. With nothing active it always
// starts a physical transaction on a fresh connection. Otherwise
// PropagationRequired joins the current one and PropagationRequiresNew
// suspends it and starts another on a second connection.
func (c *Coordinator) Begin(ctx context.Context, def Definition) (*Status, error) {
	if !def.Propagation.valid() {
		return nil, errors.Wrapf(ErrUnknownPropagation, "begin %q", def.Name)
	}

	current := c.current
	if current == nil {
		c.log.Debugf("Creating new transaction with name [%s]: %s", def.Name, def)
		tx, err := c.start(ctx, def)
		if err != nil {
			return nil, err
		}
		return &Status{owner: c, def: def, isNew: true, tx: tx}, nil
	}

	if def.Propagation == PropagationRequired {
		c.log.Debugf("Participating in existing transaction #%d with name [%s]", current.id, def.Name)
		current.depth++
		return &Status{owner: c, def: def, tx: current}, nil
	}

	c.log.Debugf("Suspending current transaction #%d, creating new transaction with name [%s]: %s", current.id, def.Name, def)
	c.current = nil

	tx, err := c.start(ctx, def)
	if err != nil {
		c.log.Debugf("Resuming suspended transaction #%d after failed start", current.id)
		c.current = current
		return nil, err
	}

	return &Status{owner: c, def: def, isNew: true, tx: tx, suspended: current}, nil
}

// Commit completes a logical transaction. It is a no-op for participants.
// For the owner it commits the physical transaction, unless somebody has
// marked it rollback-only: then it rolls back and returns ErrUnexpectedRollback.
func (c *Coordinator) Commit(ctx context.Context, s *Status) error {
	err := c.checkCompletable(s)
	if err != nil {
		return errors.WrapFail(err, "commit")
	}

	if s.localRollbackOnly {
		c.log.Debugf("Transactional code has requested rollback of [%s]", s.def.Name)
		return c.Rollback(ctx, s)
	}

	if !s.isNew {
		c.log.Debugf("Participating transaction [%s] completed, commit is left to transaction #%d", s.def.Name, s.tx.id)
		s.tx.depth--
		s.completed = true
		return nil
	}

	tx := s.tx
	if tx.rollbackOnly {
		c.log.Debugf("Global transaction #%d is marked as rollback-only but transactional code requested commit", tx.id)
		return errors.Join(ErrUnexpectedRollback, c.rollbackPhysical(ctx, s))
	}

	c.log.Debugf("Initiating transaction #%d commit", tx.id)
	err = tx.conn.Commit(ctx)
	if err != nil {
		c.log.Debugf("Transaction #%d commit failed, initiating rollback", tx.id)
		return errors.Join(errors.WrapFail(err, "commit transaction"), c.rollbackPhysical(ctx, s))
	}

	return c.finish(ctx, s, StateCommitted)
}

// Rollback completes a logical transaction. A participant only marks the
// physical transaction rollback-only, the owner rolls it back right away.
func (c *Coordinator) Rollback(ctx context.Context, s *Status) error {
	err := c.checkCompletable(s)
	if err != nil {
		return errors.WrapFail(err, "roll back")
	}

	if !s.isNew {
		c.log.Debugf("Participating transaction failed - marking existing transaction #%d as rollback-only", s.tx.id)
		s.tx.markRollbackOnly()
		s.tx.depth--
		s.completed = true
		return nil
	}

	c.log.Debugf("Initiating transaction #%d rollback", s.tx.id)
	return c.rollbackPhysical(ctx, s)
}

func (c *Coordinator) IsNewTransaction(s *Status) bool {
	return s.IsNewTransaction()
}

// IsActive reports whether a physical transaction is bound right now.
func (c *Coordinator) IsActive() bool {
	return c.current != nil && c.current.state == StateActive
}

func (c *Coordinator) IsReadOnly() bool {
	return c.IsActive() && c.current.readOnly
}

// Depth is the number of running logical transactions
// sharing the current physical one.
func (c *Coordinator) Depth() int {
	if !c.IsActive() {
		return 0
	}
	return c.current.depth
}

// Conn returns the connection of the current physical transaction.
func (c *Coordinator) Conn() (Conn, bool) {
	if !c.IsActive() {
		return nil, false
	}
	return c.current.conn, true
}

// RegisterSynchronization attaches callbacks to the current physical
// transaction. They run once it has completed and its connection
// has been released.
func (c *Coordinator) RegisterSynchronization(sync Synchronization) error {
	if !c.IsActive() {
		return ErrNoTransaction
	}
	c.current.syncs = append(c.current.syncs, sync)
	return nil
}

func (c *Coordinator) start(ctx context.Context, def Definition) (*physicalTxn, error) {
	conn, err := c.provider.Acquire(ctx)
	if err != nil {
		return nil, errors.WrapFail(err, "acquire connection")
	}

	err = conn.Begin(ctx, Options{ReadOnly: def.ReadOnly})
	if err != nil {
		return nil, errors.Join(
			errors.WrapFail(err, "begin transaction"),
			errors.WrapFail(c.provider.Release(ctx, conn), "release connection"),
		)
	}

	tx := &physicalTxn{
		id:       txnSeq.Add(1),
		name:     def.Name,
		conn:     conn,
		state:    StateActive,
		readOnly: def.ReadOnly,
		depth:    1,
	}
	c.current = tx

	c.log.Debugf("Acquired connection for transaction #%d", tx.id)
	return tx, nil
}

func (c *Coordinator) rollbackPhysical(ctx context.Context, s *Status) error {
	err := s.tx.conn.Rollback(ctx)
	return errors.Join(
		errors.WrapFail(err, "roll back transaction"),
		c.finish(ctx, s, StateRolledBack),
	)
}

// finish moves an owned physical transaction to its final state,
// releases its connection, resumes the suspended one, if any,
// and fires synchronizations.
func (c *Coordinator) finish(ctx context.Context, s *Status, state State) error {
	tx := s.tx
	tx.state = state
	tx.depth--
	s.completed = true

	c.current = s.suspended
	if s.suspended != nil {
		c.log.Debugf("Resuming suspended transaction #%d after completion of transaction #%d", s.suspended.id, tx.id)
	}

	c.log.Debugf("Releasing connection of transaction #%d after %s", tx.id, state)
	err := errors.WrapFail(c.provider.Release(ctx, tx.conn), "release connection")

	for _, sync := range tx.syncs {
		if state == StateCommitted {
			sync.AfterCommit(ctx)
		}
		sync.AfterCompletion(ctx, state)
	}

	return err
}

func (c *Coordinator) checkCompletable(s *Status) error {
	switch {
	case s == nil || s.owner != c:
		return ErrForeignStatus
	case s.completed || s.tx.state != StateActive:
		return ErrTransactionCompleted
	case c.current != s.tx:
		return ErrCompletionOrder
	case s.isNew && s.tx.depth > 1:
		return ErrCompletionOrder
	default:
		return nil
	}
}
