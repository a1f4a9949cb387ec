package txn

import "context"

// Conn is a connection-like resource able to carry one physical
// transaction at a time.
type Conn interface {
	Begin(ctx context.Context, opts Options) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Provider hands out connections. It must be able to keep at least
// two connections alive at once for PropagationRequiresNew.
type Provider interface {
	Acquire(ctx context.Context) (Conn, error)
	Release(ctx context.Context, conn Conn) error
}

// Options are passed to Conn.Begin when a physical transaction starts.
type Options struct {
	ReadOnly bool
}

type Propagation int

const (
	// PropagationRequired joins the current transaction
	// or starts a new one if there is none
	PropagationRequired Propagation = iota

	// PropagationRequiresNew always starts an independent
	// transaction on a separate connection, suspending
	// the current one until the new one completes
	PropagationRequiresNew
)

func (p Propagation) String() string {
	switch p {
	case PropagationRequired:
		return "PROPAGATION_REQUIRED"
	case PropagationRequiresNew:
		return "PROPAGATION_REQUIRES_NEW"
	default:
		return "PROPAGATION_UNKNOWN"
	}
}

func (p Propagation) valid() bool {
	return p == PropagationRequired || p == PropagationRequiresNew
}

// State of a physical transaction. The only transitions are
// StateNone -> StateActive -> StateCommitted | StateRolledBack.
type State int

const (
	StateNone State = iota
	StateActive
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateCommitted:
		return "COMMITTED"
	case StateRolledBack:
		return "ROLLED_BACK"
	default:
		return "NONE"
	}
}
