package tasks

import "time"

// Config sizes the import queue. Zero values fall back to DefaultConfig.
type Config struct {
	Workers int
	// ReleaseAfter returns a claimed task to the queue when its worker
	// has not finished it in time.
	ReleaseAfter    time.Duration
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:         2,
		ReleaseAfter:    15 * time.Minute,
		CleanupInterval: time.Hour,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.ReleaseAfter <= 0 {
		c.ReleaseAfter = def.ReleaseAfter
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = def.CleanupInterval
	}
	return c
}
