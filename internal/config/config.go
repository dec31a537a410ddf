package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is one immutable snapshot of the agent's settings. Snapshots are
// replaced wholesale through a Store, never mutated after loading.
type Config struct {
	// Monitor lists the path prefixes whose executables are tracked.
	Monitor []string `yaml:"monitor"`

	// MinimumDuration is the shortest session, in seconds, worth
	// reporting. Shorter runs are discarded.
	MinimumDuration uint64 `yaml:"minimum_duration"`

	// URL is the collector base URL. Submissions go to /submit under it.
	URL string `yaml:"url"`

	// Secret is the shared secret sent in the X-Secret-Key header.
	// Empty means the header is not sent.
	Secret string `yaml:"secret"`

	// PollInterval is the tick interval of the polling event source on
	// platforms without push notifications.
	PollInterval time.Duration `yaml:"poll_interval"`

	// LogLevel overrides the default info level when set.
	LogLevel string `yaml:"log_level"`
}

// Load reads a YAML config file. Defaults are applied before unmarshalling
// so absent keys keep their documented values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		PollInterval: time.Second,
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	return cfg, nil
}

// IsMonitored reports whether path falls under one of the configured
// monitor prefixes. The comparison is on normalized path components, so
// `C:\Games` matches itself and anything nested under it, but not
// `C:\GamesOld\app.exe`. No symlink resolution, no case folding.
func (c *Config) IsMonitored(path string) bool {
	target := pathComponents(path)
	for _, monitor := range c.Monitor {
		if hasPrefix(target, pathComponents(monitor)) {
			return true
		}
	}
	return false
}

// pathComponents splits a path into its components, accepting both
// separator styles so config files and OS events don't have to agree on
// slash direction.
func pathComponents(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\'
	})
}

func hasPrefix(path, prefix []string) bool {
	if len(prefix) == 0 || len(prefix) > len(path) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}
