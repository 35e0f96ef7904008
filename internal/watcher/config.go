package watcher

import "time"

type Config struct {
	DebounceWindow time.Duration `yaml:"debounce" json:"debounce"`
	MaxBatchSize   int           `yaml:"max_batch_size" json:"max_batch_size"`
	IgnorePatterns []string      `yaml:"ignore" json:"ignore"`
	WatchHidden    bool          `yaml:"watch_hidden" json:"watch_hidden"`
}

func DefaultConfig() Config {
	return Config{
		DebounceWindow: 300 * time.Millisecond,
		MaxBatchSize:   100,
		IgnorePatterns: []string{
			"**/.git/**",
			"**/node_modules/**",
			"**/.idea/**",
			"**/*.log",
			"**/dist/**",
			"**/build/**",
			"**/__pycache__/**",
			"**/.venv/**",
			"**/vendor/**",
		},
	}
}
