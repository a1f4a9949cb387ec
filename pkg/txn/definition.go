package txn

import (
	"strings"

	"github.com/nikmy/txprop/pkg/errors"
)

// Definition describes how a logical transaction wants to run.
// The zero value is an unnamed read-write PropagationRequired one.
type Definition struct {
	Name        string
	Propagation Propagation
	ReadOnly    bool

	// NoRollbackFor lists errors on which Run commits anyway.
	// Matching is done with errors.Is.
	NoRollbackFor []error
}

type Option func(*Definition)

func NewDefinition(opts ...Option) Definition {
	var def Definition
	for _, opt := range opts {
		opt(&def)
	}
	return def
}

func WithName(name string) Option {
	return func(d *Definition) {
		d.Name = name
	}
}

func WithPropagation(p Propagation) Option {
	return func(d *Definition) {
		d.Propagation = p
	}
}

func RequiresNew() Option {
	return WithPropagation(PropagationRequiresNew)
}

func ReadOnly() Option {
	return func(d *Definition) {
		d.ReadOnly = true
	}
}

func NoRollbackFor(errs ...error) Option {
	return func(d *Definition) {
		d.NoRollbackFor = append(d.NoRollbackFor, errs...)
	}
}

func (d Definition) rollbackOn(err error) bool {
	return !errors.IsAny(err, d.NoRollbackFor...)
}

func (d Definition) String() string {
	var sb strings.Builder
	sb.WriteString(d.Propagation.String())
	if d.ReadOnly {
		sb.WriteString(",readOnly")
	}
	for _, err := range d.NoRollbackFor {
		sb.WriteString(",+")
		sb.WriteString(err.Error())
	}
	return sb.String()
}
