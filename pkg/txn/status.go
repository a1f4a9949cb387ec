package txn

type physicalTxn struct {
	id       uint64
	name     string
	conn     Conn
	state    State
	readOnly bool

	// rollbackOnly is never cleared, only the end of
	// the transaction gets rid of it
	rollbackOnly bool

	// depth counts logical transactions still running
	// on top of this one, the owner included
	depth int

	syncs []Synchronization
}

func (p *physicalTxn) markRollbackOnly() {
	if p.state == StateActive {
		p.rollbackOnly = true
	}
}

// Status is a handle of one logical transaction returned by Begin.
// It must be completed exactly once with Commit or Rollback.
type Status struct {
	owner *Coordinator
	def   Definition
	isNew bool

	tx        *physicalTxn
	suspended *physicalTxn

	completed         bool
	localRollbackOnly bool
}

// IsNewTransaction reports whether this logical transaction started
// the physical one and therefore decides its outcome.
func (s *Status) IsNewTransaction() bool {
	return s.isNew
}

func (s *Status) IsRollbackOnly() bool {
	return s.localRollbackOnly || s.tx.rollbackOnly
}

// SetRollbackOnly makes the following Commit behave like Rollback
// without reporting ErrUnexpectedRollback.
func (s *Status) SetRollbackOnly() {
	s.localRollbackOnly = true
}

func (s *Status) IsCompleted() bool {
	return s.completed
}

func (s *Status) HasSuspended() bool {
	return s.suspended != nil
}

func (s *Status) Name() string {
	return s.def.Name
}

func (s *Status) Propagation() Propagation {
	return s.def.Propagation
}

// State of the underlying physical transaction.
func (s *Status) State() State {
	return s.tx.state
}
