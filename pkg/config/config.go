// Package config holds per-role configuration snapshots: caller-supplied
// overrides merged atop the harness's built-in test defaults. Snapshots are
// copied per role, never shared.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Keys with harness defaults.
const (
	KeyWorkerTaskSlots        = "worker.task-slots"
	KeyWorkerMemoryMB         = "worker.memory-mb"
	KeyWorkerRegisterInterval = "worker.register-interval"
	KeyRegistrationTimeout    = "harness.registration-timeout"
	KeySubmissionTimeout      = "harness.submission-timeout"
	KeyEnrollSecret           = "coordinator.enroll-secret"
	KeyWorkerEnrollToken      = "worker.enroll-token"
)

// Config is one role's configuration snapshot.
type Config struct {
	v *viper.Viper
}

// New returns a snapshot holding only the harness defaults: a forced small
// memory footprint and a single task slot per worker, plus the bounded-wait
// timeouts.
func New() *Config {
	v := viper.New()
	v.SetDefault(KeyWorkerTaskSlots, 1)
	v.SetDefault(KeyWorkerMemoryMB, 64)
	v.SetDefault(KeyWorkerRegisterInterval, 100*time.Millisecond)
	v.SetDefault(KeyRegistrationTimeout, 30*time.Second)
	v.SetDefault(KeySubmissionTimeout, 2*time.Minute)
	v.SetDefault(KeyEnrollSecret, "")
	v.SetDefault(KeyWorkerEnrollToken, "")
	return &Config{v: v}
}

// Merge lays overrides atop the current snapshot. Later merges win.
func (c *Config) Merge(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	return c.v.MergeConfigMap(overrides)
}

// Set assigns a single key, taking precedence over defaults and merges.
func (c *Config) Set(key string, value any) {
	c.v.Set(key, value)
}

// Clone returns an independent copy of the snapshot.
func (c *Config) Clone() *Config {
	copied := New()
	_ = copied.v.MergeConfigMap(c.v.AllSettings())
	return copied
}

func (c *Config) GetString(key string) string          { return c.v.GetString(key) }
func (c *Config) GetInt(key string) int                { return c.v.GetInt(key) }
func (c *Config) GetBool(key string) bool              { return c.v.GetBool(key) }
func (c *Config) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }

// AllSettings exposes the flattened snapshot, mainly for logging.
func (c *Config) AllSettings() map[string]any { return c.v.AllSettings() }
