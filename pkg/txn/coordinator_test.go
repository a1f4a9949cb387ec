package txn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/logger"
)

func newTestCoordinator(p Provider) *Coordinator {
	return NewCoordinator(p, logger.NewStub())
}

var (
	required    = NewDefinition()
	requiresNew = NewDefinition(RequiresNew())
)

func TestCommit(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{}
	c := newTestCoordinator(p)

	status, err := c.Begin(ctx, required)
	require.NoError(t, err)
	require.True(t, c.IsNewTransaction(status))
	require.True(t, c.IsActive())
	require.Equal(t, StateActive, status.State())

	require.NoError(t, c.Commit(ctx, status))
	require.False(t, c.IsActive())
	require.True(t, status.IsCompleted())
	require.Equal(t, StateCommitted, status.State())

	require.Len(t, p.conns, 1)
	require.Equal(t, 1, p.conns[0].commits)
	require.Equal(t, 0, p.conns[0].rollbacks)
	require.Equal(t, 0, p.live)
}

func TestRollback(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{}
	c := newTestCoordinator(p)

	status, err := c.Begin(ctx, required)
	require.NoError(t, err)

	require.NoError(t, c.Rollback(ctx, status))
	require.False(t, c.IsActive())
	require.Equal(t, StateRolledBack, status.State())
	require.Equal(t, 0, p.commits())
	require.Equal(t, 1, p.rollbacks())
	require.Equal(t, 0, p.live)
}

func TestSequentialTransactions(t *testing.T) {
	type testcase struct {
		name         string
		second       func(*Coordinator, context.Context, *Status) error
		wantCommits  int
		wantRollback int
	}

	tests := [...]testcase{
		{
			name:        "commit then commit",
			second:      (*Coordinator).Commit,
			wantCommits: 2,
		},
		{
			name:         "commit then rollback",
			second:       (*Coordinator).Rollback,
			wantCommits:  1,
			wantRollback: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			p := &fakeProvider{}
			c := newTestCoordinator(p)

			first, err := c.Begin(ctx, required)
			require.NoError(t, err)
			require.NoError(t, c.Commit(ctx, first))

			second, err := c.Begin(ctx, required)
			require.NoError(t, err)
			require.True(t, second.IsNewTransaction())
			require.False(t, second.IsRollbackOnly())
			require.NoError(t, tt.second(c, ctx, second))

			require.Len(t, p.conns, 2)
			require.Equal(t, tt.wantCommits, p.commits())
			require.Equal(t, tt.wantRollback, p.rollbacks())
			require.Equal(t, 0, p.live)
		})
	}
}

func TestNestedRequired(t *testing.T) {
	type testcase struct {
		name     string
		depth    int
		rollback bool
	}

	tests := [...]testcase{
		{name: "single", depth: 1},
		{name: "two levels", depth: 2},
		{name: "five levels", depth: 5},
		{name: "two levels owner rolls back", depth: 2, rollback: true},
		{name: "five levels owner rolls back", depth: 5, rollback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			p := &fakeProvider{}
			c := newTestCoordinator(p)

			statuses := make([]*Status, 0, tt.depth)
			for i := 0; i < tt.depth; i++ {
				s, err := c.Begin(ctx, required)
				require.NoError(t, err)
				require.Equal(t, i == 0, s.IsNewTransaction())
				require.Equal(t, i+1, c.Depth())
				statuses = append(statuses, s)
			}
			require.Len(t, p.conns, 1)

			for i := tt.depth - 1; i > 0; i-- {
				require.NoError(t, c.Commit(ctx, statuses[i]))
				require.True(t, c.IsActive())
				require.Zero(t, p.commits())
			}

			if tt.rollback {
				require.NoError(t, c.Rollback(ctx, statuses[0]))
				require.Equal(t, 0, p.commits())
				require.Equal(t, 1, p.rollbacks())
			} else {
				require.NoError(t, c.Commit(ctx, statuses[0]))
				require.Equal(t, 1, p.commits())
				require.Equal(t, 0, p.rollbacks())
			}
			require.False(t, c.IsActive())
			require.Equal(t, 0, p.live)
		})
	}
}

func TestInnerRollbackMarksRollbackOnly(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{}
	c := newTestCoordinator(p)

	outer, err := c.Begin(ctx, required)
	require.NoError(t, err)
	inner, err := c.Begin(ctx, required)
	require.NoError(t, err)
	require.False(t, inner.IsNewTransaction())

	require.NoError(t, c.Rollback(ctx, inner))
	require.True(t, c.IsActive())
	require.True(t, outer.IsRollbackOnly())
	require.Zero(t, p.rollbacks())

	err = c.Commit(ctx, outer)
	require.ErrorIs(t, err, ErrUnexpectedRollback)
	require.Equal(t, StateRolledBack, outer.State())
	require.Equal(t, 0, p.commits())
	require.Equal(t, 1, p.rollbacks())
	require.Equal(t, 0, p.live)
	require.False(t, c.IsActive())
}

func TestOuterRollbackAfterInnerCommit(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{}
	c := newTestCoordinator(p)

	outer, err := c.Begin(ctx, required)
	require.NoError(t, err)
	inner, err := c.Begin(ctx, required)
	require.NoError(t, err)

	require.NoError(t, c.Commit(ctx, inner))
	require.NoError(t, c.Rollback(ctx, outer))
	require.Equal(t, 0, p.commits())
	require.Equal(t, 1, p.rollbacks())
}

func TestRequiresNew(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{}
	c := newTestCoordinator(p)

	outer, err := c.Begin(ctx, required)
	require.NoError(t, err)
	outerConn, ok := c.Conn()
	require.True(t, ok)

	inner, err := c.Begin(ctx, requiresNew)
	require.NoError(t, err)
	require.True(t, inner.IsNewTransaction())
	require.True(t, inner.HasSuspended())
	require.Equal(t, 2, p.live)

	innerConn, ok := c.Conn()
	require.True(t, ok)
	require.NotSame(t, outerConn, innerConn)

	require.NoError(t, c.Rollback(ctx, inner))
	require.Equal(t, 1, p.conns[1].rollbacks)
	require.Equal(t, []*fakeConn{p.conns[1]}, p.released)

	resumed, ok := c.Conn()
	require.True(t, ok)
	require.Same(t, outerConn, resumed)
	require.False(t, outer.IsRollbackOnly())

	require.NoError(t, c.Commit(ctx, outer))
	require.Equal(t, 1, p.conns[0].commits)
	require.Equal(t, 0, p.conns[0].rollbacks)
	require.Equal(t, 0, p.live)
}

func TestRequiresNewWithoutSpareConnection(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{max: 1}
	c := newTestCoordinator(p)

	outer, err := c.Begin(ctx, required)
	require.NoError(t, err)

	inner, err := c.Begin(ctx, requiresNew)
	require.ErrorIs(t, err, errExhausted)
	require.Nil(t, inner)

	require.True(t, c.IsActive())
	require.Equal(t, 1, c.Depth())
	require.NoError(t, c.Commit(ctx, outer))
	require.Equal(t, 1, p.commits())
}

func TestPreconditions(t *testing.T) {
	type testcase struct {
		name string
		run  func(t *testing.T, c *Coordinator) error
		want error
	}

	ctx := context.Background()

	tests := [...]testcase{
		{
			name: "double commit",
			run: func(t *testing.T, c *Coordinator) error {
				s, err := c.Begin(ctx, required)
				require.NoError(t, err)
				require.NoError(t, c.Commit(ctx, s))
				return c.Commit(ctx, s)
			},
			want: ErrTransactionCompleted,
		},
		{
			name: "rollback after commit",
			run: func(t *testing.T, c *Coordinator) error {
				s, err := c.Begin(ctx, required)
				require.NoError(t, err)
				require.NoError(t, c.Commit(ctx, s))
				return c.Rollback(ctx, s)
			},
			want: ErrTransactionCompleted,
		},
		{
			name: "participant double rollback",
			run: func(t *testing.T, c *Coordinator) error {
				_, err := c.Begin(ctx, required)
				require.NoError(t, err)
				inner, err := c.Begin(ctx, required)
				require.NoError(t, err)
				require.NoError(t, c.Rollback(ctx, inner))
				return c.Rollback(ctx, inner)
			},
			want: ErrTransactionCompleted,
		},
		{
			name: "owner before participant",
			run: func(t *testing.T, c *Coordinator) error {
				outer, err := c.Begin(ctx, required)
				require.NoError(t, err)
				_, err = c.Begin(ctx, required)
				require.NoError(t, err)
				return c.Commit(ctx, outer)
			},
			want: ErrCompletionOrder,
		},
		{
			name: "suspended before new",
			run: func(t *testing.T, c *Coordinator) error {
				outer, err := c.Begin(ctx, required)
				require.NoError(t, err)
				_, err = c.Begin(ctx, requiresNew)
				require.NoError(t, err)
				return c.Rollback(ctx, outer)
			},
			want: ErrCompletionOrder,
		},
		{
			name: "foreign status",
			run: func(t *testing.T, c *Coordinator) error {
				other := newTestCoordinator(&fakeProvider{})
				s, err := other.Begin(ctx, required)
				require.NoError(t, err)
				return c.Commit(ctx, s)
			},
			want: ErrForeignStatus,
		},
		{
			name: "nil status",
			run: func(t *testing.T, c *Coordinator) error {
				return c.Rollback(ctx, nil)
			},
			want: ErrForeignStatus,
		},
		{
			name: "unknown propagation",
			run: func(t *testing.T, c *Coordinator) error {
				_, err := c.Begin(ctx, NewDefinition(WithPropagation(Propagation(42))))
				return err
			},
			want: ErrUnknownPropagation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(t, newTestCoordinator(&fakeProvider{}))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLocalRollbackOnly(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{}
	c := newTestCoordinator(p)

	outer, err := c.Begin(ctx, required)
	require.NoError(t, err)
	inner, err := c.Begin(ctx, required)
	require.NoError(t, err)

	inner.SetRollbackOnly()
	require.True(t, inner.IsRollbackOnly())
	require.NoError(t, c.Commit(ctx, inner))
	require.True(t, outer.IsRollbackOnly())

	require.ErrorIs(t, c.Commit(ctx, outer), ErrUnexpectedRollback)

	single, err := c.Begin(ctx, required)
	require.NoError(t, err)
	single.SetRollbackOnly()
	require.NoError(t, c.Commit(ctx, single))
	require.Equal(t, StateRolledBack, single.State())
	require.Equal(t, 2, p.rollbacks())
}

func TestReadOnly(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{}
	c := newTestCoordinator(p)

	require.False(t, c.IsReadOnly())

	s, err := c.Begin(ctx, NewDefinition(ReadOnly(), WithName("find")))
	require.NoError(t, err)
	require.True(t, c.IsReadOnly())
	require.Equal(t, "find", s.Name())
	require.True(t, p.conns[0].opts.ReadOnly)

	inner, err := c.Begin(ctx, requiresNew)
	require.NoError(t, err)
	require.False(t, c.IsReadOnly())
	require.Equal(t, PropagationRequiresNew, inner.Propagation())

	require.NoError(t, c.Commit(ctx, inner))
	require.True(t, c.IsReadOnly())
	require.NoError(t, c.Commit(ctx, s))
}

func TestSynchronizations(t *testing.T) {
	type testcase struct {
		name       string
		innerFails bool
		wantState  State
		wantCommit bool
	}

	tests := [...]testcase{
		{name: "committed", wantState: StateCommitted, wantCommit: true},
		{name: "rolled back", innerFails: true, wantState: StateRolledBack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c := newTestCoordinator(&fakeProvider{})

			require.ErrorIs(t, c.RegisterSynchronization(SyncFuncs{}), ErrNoTransaction)

			var (
				committed bool
				completed State
			)

			outer, err := c.Begin(ctx, required)
			require.NoError(t, err)

			inner, err := c.Begin(ctx, required)
			require.NoError(t, err)
			require.NoError(t, c.RegisterSynchronization(SyncFuncs{
				OnCommit: func(context.Context) {
					require.False(t, c.IsActive())
					committed = true
				},
				OnCompletion: func(_ context.Context, state State) { completed = state },
			}))

			if tt.innerFails {
				require.NoError(t, c.Rollback(ctx, inner))
			} else {
				require.NoError(t, c.Commit(ctx, inner))
			}
			require.Equal(t, StateNone, completed)

			_ = c.Commit(ctx, outer)
			require.Equal(t, tt.wantCommit, committed)
			require.Equal(t, tt.wantState, completed)
		})
	}
}

func TestCommitFailure(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	conn := NewMockConn(ctrl)
	provider := NewMockProvider(ctrl)
	failure := errors.Error("connection reset")

	gomock.InOrder(
		provider.EXPECT().Acquire(gomock.Any()).Return(conn, nil).Times(1),
		conn.EXPECT().Begin(gomock.Any(), Options{}).Return(nil).Times(1),
		conn.EXPECT().Commit(gomock.Any()).Return(failure).Times(1),
		conn.EXPECT().Rollback(gomock.Any()).Return(nil).Times(1),
		provider.EXPECT().Release(gomock.Any(), conn).Return(nil).Times(1),
	)

	c := newTestCoordinator(provider)
	s, err := c.Begin(ctx, required)
	require.NoError(t, err)

	err = c.Commit(ctx, s)
	require.ErrorIs(t, err, failure)
	require.NotErrorIs(t, err, ErrUnexpectedRollback)
	require.Equal(t, StateRolledBack, s.State())
	require.False(t, c.IsActive())
}

func TestBeginFailureReleasesConnection(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	conn := NewMockConn(ctrl)
	provider := NewMockProvider(ctrl)
	failure := errors.Error("read-only replica")

	provider.EXPECT().Acquire(gomock.Any()).Return(conn, nil).Times(1)
	conn.EXPECT().Begin(gomock.Any(), Options{ReadOnly: true}).Return(failure).Times(1)
	provider.EXPECT().Release(gomock.Any(), conn).Return(nil).Times(1)

	c := newTestCoordinator(provider)
	s, err := c.Begin(ctx, NewDefinition(ReadOnly()))
	require.ErrorIs(t, err, failure)
	require.Nil(t, s)
	require.False(t, c.IsActive())
}
