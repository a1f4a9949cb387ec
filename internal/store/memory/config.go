package memory

import "time"

type Config struct {
	MaxConns int `yaml:"max_conns"`

	SnapshotFile     string        `yaml:"snapshot_file"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

const defaultMaxConns = 8
