package ssr

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Config holds settings shared by every render in an Environment.
//
// LoadConfig reads it from environment variables, e.g. with prefix "SSR":
//
//	SSR_SERVER_SIDE_RENDERING=false   render empty containers only
//	SSR_COMPONENT_EXISTS_CHECKS=true  probe the engine before rendering
//	SSR_ENGINE_ARGS=host.js,--quiet
type Config struct {
	// ServerSideRendering disables engine execution when false; every
	// component renders as an empty container for the client to fill.
	ServerSideRendering bool `envconfig:"SERVER_SIDE_RENDERING" default:"true"`
	// ComponentExistsChecks probes the engine for each component before
	// rendering it, so a missing registration is reported distinctly.
	ComponentExistsChecks bool `envconfig:"COMPONENT_EXISTS_CHECKS" default:"false"`
	// ContainerTag is the element wrapping rendered markup by default.
	ContainerTag string `envconfig:"CONTAINER_TAG" default:"div"`

	EngineCommand string   `envconfig:"ENGINE_COMMAND" default:"node"`
	EngineArgs    []string `envconfig:"ENGINE_ARGS"`
	MaxEngines    int      `envconfig:"MAX_ENGINES" default:"4"`

	// PoolMaxPerBucket bounds the idle buffers kept per size class.
	PoolMaxPerBucket int `envconfig:"POOL_MAX_PER_BUCKET" default:"50"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"logfmt"`
}

// DefaultConfig returns the configuration LoadConfig yields with no
// variables set.
func DefaultConfig() Config {
	return Config{
		ServerSideRendering: true,
		ContainerTag:        "div",
		EngineCommand:       "node",
		MaxEngines:          4,
		PoolMaxPerBucket:    50,
		LogLevel:            "info",
		LogFormat:           "logfmt",
	}
}

// LoadConfig reads a Config from environment variables named
// <prefix>_<FIELD>.
func LoadConfig(prefix string) (Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "ssr: load config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings no Environment can run with.
func (c Config) Validate() error {
	if c.ContainerTag == "" {
		return errors.New("ssr: container tag must not be empty")
	}
	if !containerTagPattern.MatchString(c.ContainerTag) {
		return errors.Errorf("ssr: container tag %q is not an element name", c.ContainerTag)
	}
	if c.MaxEngines <= 0 {
		return errors.Errorf("ssr: max engines must be positive, got %d", c.MaxEngines)
	}
	if c.PoolMaxPerBucket <= 0 {
		return errors.Errorf("ssr: pool max per bucket must be positive, got %d", c.PoolMaxPerBucket)
	}
	return nil
}
