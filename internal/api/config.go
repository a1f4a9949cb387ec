package api

import "time"

const (
	defaultAddr            = ":8080"
	defaultShutdownTimeout = 10 * time.Second
)

type Config struct {
	// Proxy enables trusted proxy checks when Trusted is not empty
	Proxy struct {
		Header  string   `yaml:"header"`
		Trusted []string `yaml:"trusted"`
	} `yaml:"proxy"`

	HTTP struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		IdleTimeout     time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"http"`
}

func (c Config) withDefaults() Config {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = defaultAddr
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = defaultShutdownTimeout
	}
	return c
}

// ShutdownTimeout bounds graceful shutdown of the server.
func (c Config) ShutdownTimeout() time.Duration {
	return c.withDefaults().HTTP.ShutdownTimeout
}
