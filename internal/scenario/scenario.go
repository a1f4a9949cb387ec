package scenario

import (
	"context"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/logger"
	"github.com/nikmy/txprop/pkg/txn"
)

var ErrUnknownScenario = errors.Error("unknown scenario")

type Step struct {
	Action   string `json:"action"`
	IsNew    *bool  `json:"is_new,omitempty"`
	Active   *bool  `json:"active,omitempty"`
	ReadOnly *bool  `json:"read_only,omitempty"`
	Err      string `json:"error,omitempty"`
}

type Report struct {
	Name     string `json:"name"`
	Steps    []Step `json:"steps"`
	Err      string `json:"error,omitempty"`
	Expected string `json:"expected_error,omitempty"`
	OK       bool   `json:"ok"`

	counters
}

func (r Report) String() string {
	status := "FAIL"
	if r.OK {
		status = "ok"
	}
	return fmt.Sprintf("%-28s %-4s acquired=%d commits=%d rollbacks=%d %s",
		r.Name, status, r.Acquired, r.Commits, r.Rollbacks, r.Err)
}

type scenario struct {
	expect error
	run    func(ctx context.Context, r *recorder) error
}

func NewRunner(provider txn.Provider, log logger.Logger) *Runner {
	return &Runner{provider: provider, log: log.With("scenario")}
}

// Runner plays transaction flows against a provider,
// each one on its own coordinator.
type Runner struct {
	provider txn.Provider
	log      logger.Logger
}

func Names() []string {
	names := lo.Keys(scenarios)
	slices.Sort(names)
	return names
}

func (r *Runner) Run(ctx context.Context, name string) (Report, error) {
	sc, ok := scenarios[name]
	if !ok {
		return Report{}, errors.Wrapf(ErrUnknownScenario, "run %q", name)
	}

	p := &countingProvider{base: r.provider}
	rec := &recorder{c: txn.NewCoordinator(p, r.log)}

	r.log.Infof("running %s", name)
	err := sc.run(txn.NewContext(ctx, rec.c), rec)

	report := Report{
		Name:     name,
		Steps:    rec.steps,
		OK:       errors.Is(err, sc.expect),
		counters: p.c,
	}
	if err != nil {
		report.Err = err.Error()
	}
	if sc.expect != nil {
		report.Expected = sc.expect.Error()
	}
	return report, nil
}

func (r *Runner) RunAll(ctx context.Context) []Report {
	return lo.Map(Names(), func(name string, _ int) Report {
		report, _ := r.Run(ctx, name)
		return report
	})
}

type recorder struct {
	c     *txn.Coordinator
	steps []Step
}

func (r *recorder) begin(ctx context.Context, label string, def txn.Definition) (*txn.Status, error) {
	s, err := r.c.Begin(ctx, def)
	step := Step{Action: fmt.Sprintf("begin %s %s", label, def.Propagation)}
	if err != nil {
		step.Err = err.Error()
	} else {
		step.IsNew = lo.ToPtr(r.c.IsNewTransaction(s))
	}
	r.steps = append(r.steps, step)
	return s, err
}

func (r *recorder) commit(ctx context.Context, label string, s *txn.Status) error {
	return r.complete(ctx, "commit "+label, s, r.c.Commit)
}

func (r *recorder) rollback(ctx context.Context, label string, s *txn.Status) error {
	return r.complete(ctx, "rollback "+label, s, r.c.Rollback)
}

func (r *recorder) complete(ctx context.Context, action string, s *txn.Status, do func(context.Context, *txn.Status) error) error {
	err := do(ctx, s)
	step := Step{Action: action}
	if err != nil {
		step.Err = err.Error()
	}
	r.steps = append(r.steps, step)
	return err
}

func (r *recorder) inspect(action string) {
	r.steps = append(r.steps, Step{
		Action:   action,
		Active:   lo.ToPtr(r.c.IsActive()),
		ReadOnly: lo.ToPtr(r.c.IsReadOnly()),
	})
}
