package events

import "time"

type Config struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`

	Retries int           `yaml:"retries"`
	Backoff time.Duration `yaml:"backoff"`
}
