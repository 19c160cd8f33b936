package app

import (
	"errors"

	"dario.cat/mergo"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	WorkflowPath string // hcl workflow file or directory
	InputsPath   string // optional hcl inputs file

	// RunID identifies the run in the state store. Reusing the id of an
	// interrupted run resumes it; empty means a fresh generated id.
	RunID string

	// StateDir is the on-disk run store location. Empty keeps run state in
	// memory only, which disables resume.
	StateDir string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int
}

// defaultConfig supplies the values for fields the caller left unset.
var defaultConfig = Config{
	LogFormat:   "json",
	LogLevel:    "info",
	WorkerCount: 10,
}

// NewConfig validates cfg and fills unset fields from the defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.WorkflowPath == "" {
		return nil, errors.New("WorkflowPath is a required configuration field and cannot be empty")
	}

	if err := mergo.Merge(&cfg, defaultConfig); err != nil {
		return nil, err
	}

	return &cfg, nil
}
