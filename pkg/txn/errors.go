package txn

import "github.com/nikmy/txprop/pkg/errors"

// ErrUnexpectedRollback is returned by Commit of an owning transaction
// that a participant has already marked as rollback-only. The physical
// transaction is rolled back instead.
var ErrUnexpectedRollback = errors.Error("transaction silently rolled back because it has been marked as rollback-only")

// Caller contract violations.
var (
	ErrTransactionCompleted = errors.Error("transaction is already completed, do not call commit or rollback more than once per transaction")
	ErrCompletionOrder      = errors.Error("transaction is not the innermost one, complete nested transactions first")
	ErrForeignStatus        = errors.Error("transaction status belongs to another coordinator")
	ErrNoTransaction        = errors.Error("no transaction is active")
	ErrNoCoordinator        = errors.Error("no transaction coordinator bound to context")
	ErrUnknownPropagation   = errors.Error("unknown propagation")
)
