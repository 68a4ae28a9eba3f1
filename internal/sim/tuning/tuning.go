package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickDurationMs     int   `yaml:"tick_duration_ms"`
	AutosaveEveryTicks int   `yaml:"autosave_every_ticks"`
	Seed               int64 `yaml:"seed"`

	LogCapacity               int    `yaml:"log_capacity"`
	DefaultMaxConcurrentTasks int    `yaml:"default_max_concurrent_tasks"`
	DefaultRestTask           string `yaml:"default_rest_task"`
	WelcomeMessage            string `yaml:"welcome_message"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:           "1.0",
		TickDurationMs:            100,
		AutosaveEveryTicks:        300,
		Seed:                      1337,
		LogCapacity:               50,
		DefaultMaxConcurrentTasks: 1,
		DefaultRestTask:           "sleep",
		WelcomeMessage:            "Welcome. Manage your tasks and resources.",
	}
}

// Load reads path over Defaults, so keys absent from the file keep their
// default values. An explicit empty default_rest_task disables rest fallback.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TickDurationMs <= 0:
		return fmt.Errorf("tick_duration_ms must be > 0, got %d", t.TickDurationMs)
	case t.LogCapacity <= 0:
		return fmt.Errorf("log_capacity must be > 0, got %d", t.LogCapacity)
	case t.DefaultMaxConcurrentTasks <= 0:
		return fmt.Errorf("default_max_concurrent_tasks must be > 0, got %d", t.DefaultMaxConcurrentTasks)
	case t.AutosaveEveryTicks < 0:
		return fmt.Errorf("autosave_every_ticks must be >= 0, got %d", t.AutosaveEveryTicks)
	}
	return nil
}
