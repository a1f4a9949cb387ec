package scenario

import (
	"context"

	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/txn"
)

var (
	required    = txn.NewDefinition(txn.WithName("outer"))
	inner       = txn.NewDefinition(txn.WithName("inner"))
	requiresNew = txn.NewDefinition(txn.WithName("inner"), txn.RequiresNew())
	readOnly    = txn.NewDefinition(txn.WithName("read"), txn.ReadOnly())
)

var scenarios = map[string]scenario{
	"commit": {run: func(ctx context.Context, r *recorder) error {
		s, err := r.begin(ctx, "tx", required)
		if err != nil {
			return err
		}
		return r.commit(ctx, "tx", s)
	}},

	"rollback": {run: func(ctx context.Context, r *recorder) error {
		s, err := r.begin(ctx, "tx", required)
		if err != nil {
			return err
		}
		return r.rollback(ctx, "tx", s)
	}},

	"double_commit": {run: func(ctx context.Context, r *recorder) error {
		return sequential(ctx, r, (*recorder).commit)
	}},

	"double_commit_rollback": {run: func(ctx context.Context, r *recorder) error {
		return sequential(ctx, r, (*recorder).rollback)
	}},

	"double_completion": {expect: txn.ErrTransactionCompleted, run: func(ctx context.Context, r *recorder) error {
		s, err := r.begin(ctx, "tx", required)
		if err != nil {
			return err
		}
		err = r.commit(ctx, "tx", s)
		if err != nil {
			return err
		}
		return r.commit(ctx, "tx again", s)
	}},

	"inner_commit": {run: func(ctx context.Context, r *recorder) error {
		return nested(ctx, r, inner, (*recorder).commit, (*recorder).commit)
	}},

	"outer_rollback": {run: func(ctx context.Context, r *recorder) error {
		return nested(ctx, r, inner, (*recorder).commit, (*recorder).rollback)
	}},

	"inner_rollback": {expect: txn.ErrUnexpectedRollback, run: func(ctx context.Context, r *recorder) error {
		return nested(ctx, r, inner, (*recorder).rollback, (*recorder).commit)
	}},

	"inner_rollback_requires_new": {run: func(ctx context.Context, r *recorder) error {
		return nested(ctx, r, requiresNew, (*recorder).rollback, (*recorder).commit)
	}},

	"read_only": {run: func(ctx context.Context, r *recorder) error {
		r.inspect("before begin")
		s, err := r.begin(ctx, "read", readOnly)
		if err != nil {
			return err
		}
		r.inspect("inside read")
		err = r.commit(ctx, "read", s)
		r.inspect("after commit")
		return err
	}},
}

type completion func(r *recorder, ctx context.Context, label string, s *txn.Status) error

func sequential(ctx context.Context, r *recorder, second completion) error {
	tx1, err := r.begin(ctx, "tx1", required)
	if err != nil {
		return err
	}
	err = r.commit(ctx, "tx1", tx1)
	if err != nil {
		return err
	}

	tx2, err := r.begin(ctx, "tx2", required)
	if err != nil {
		return err
	}
	return second(r, ctx, "tx2", tx2)
}

// nested runs outer { inner } completing inner and then outer.
func nested(ctx context.Context, r *recorder, innerDef txn.Definition, innerDone, outerDone completion) error {
	outer, err := r.begin(ctx, "outer", required)
	if err != nil {
		return err
	}

	in, err := r.begin(ctx, "inner", innerDef)
	if err != nil {
		return errors.Join(err, r.rollback(ctx, "outer", outer))
	}

	err = innerDone(r, ctx, "inner", in)
	if err != nil {
		return errors.Join(err, r.rollback(ctx, "outer", outer))
	}
	return outerDone(r, ctx, "outer", outer)
}
