package worker

import (
	"fmt"
	"time"
)

// Config holds the configuration for the background maintenance worker.
type Config struct {
	// DefaultInterval is used for tasks registered without their own interval.
	// Default: 1 hour
	DefaultInterval time.Duration

	// TaskTimeout is the maximum time a single run of a task is allowed.
	// Default: 2 minutes
	TaskTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for running tasks to return.
	// Default: 30 seconds
	ShutdownTimeout time.Duration

	// RunOnStart runs every task once right after Start instead of waiting
	// a full interval.
	RunOnStart bool
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		DefaultInterval: time.Hour,
		TaskTimeout:     2 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		RunOnStart:      true,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.DefaultInterval < time.Second {
		return fmt.Errorf("default interval must be at least 1 second, got %v", c.DefaultInterval)
	}
	if c.TaskTimeout < time.Second {
		return fmt.Errorf("task timeout must be at least 1 second, got %v", c.TaskTimeout)
	}
	if c.ShutdownTimeout < time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	return nil
}
