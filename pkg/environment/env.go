package environment

import (
	"strings"

	"github.com/nikmy/txprop/pkg/errors"
)

// Env selects environment-dependent defaults, logging mostly.
// The zero value means it was never set.
type Env int

const (
	Unknown Env = iota
	Development
	Production
)

var ErrUnknownEnv = errors.Error("unknown environment")

// FromString parses an environment name, case-insensitive.
func FromString(s string) Env {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return Development
	case "prod", "production":
		return Production
	default:
		return Unknown
	}
}

// Parse is FromString which fails on names it does not know.
func Parse(s string) (Env, error) {
	env := FromString(s)
	if env == Unknown {
		return Unknown, errors.Wrapf(ErrUnknownEnv, "parse %q", s)
	}
	return env, nil
}

func (e Env) String() string {
	switch e {
	case Development:
		return "dev"
	case Production:
		return "prod"
	default:
		return "unknown"
	}
}

func (e Env) IsProduction() bool {
	return e == Production
}

func (e *Env) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}

	env, err := Parse(raw)
	if err != nil {
		return err
	}

	*e = env
	return nil
}
