package main

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nikmy/txprop/internal/api"
	"github.com/nikmy/txprop/internal/events"
	"github.com/nikmy/txprop/internal/member"
	"github.com/nikmy/txprop/internal/store/memory"
	"github.com/nikmy/txprop/internal/store/mongo"
	"github.com/nikmy/txprop/internal/store/postgres"
	"github.com/nikmy/txprop/internal/store/sqldb"
	"github.com/nikmy/txprop/pkg/environment"
	"github.com/nikmy/txprop/pkg/errors"
)

type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
	BackendMySQL    Backend = "mysql"
	BackendMongo    Backend = "mongo"
)

const defaultConfigPath = "config.yaml"

type Config struct {
	Environment environment.Env `yaml:"Environment"`
	Backend     Backend         `yaml:"Backend"`

	Memory   memory.Config   `yaml:"Memory"`
	Postgres postgres.Config `yaml:"Postgres"`
	MySQL    sqldb.Config    `yaml:"MySQL"`
	Mongo    mongo.Config    `yaml:"Mongo"`

	Kafka  events.Config `yaml:"Kafka"`
	API    api.Config    `yaml:"API"`
	Member member.Config `yaml:"Member"`
}

// loadConfig reads the yaml config, a missing file at the
// default path leaves everything at defaults.
func loadConfig(path string, env string) (*Config, error) {
	cfg := Config{Backend: BackendMemory}

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.WrapFail(err, "build path to config")
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case err != nil:
		return nil, errors.WrapFailf(err, "read %q", path)
	default:
		err = yaml.Unmarshal(data, &cfg)
		if err != nil {
			return nil, errors.WrapFail(err, "parse yaml")
		}
	}

	if env != "" {
		cfg.Environment, err = environment.Parse(env)
		if err != nil {
			return nil, errors.WrapFail(err, "apply --env")
		}
	}
	if cfg.Environment == environment.Unknown {
		cfg.Environment = environment.Development
	}

	switch cfg.Backend {
	case BackendMemory, BackendPostgres, BackendMySQL, BackendMongo:
	default:
		return nil, errors.Errorf("unknown backend %q", cfg.Backend)
	}

	return &cfg, nil
}
