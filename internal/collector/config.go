package collector

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the collector's own settings file. It shares the agent's YAML
// conventions but lives on a different host with different keys.
type Config struct {
	// Listen is the host:port the HTTP server binds.
	Listen string `yaml:"listen"`

	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`

	// Secret, when set, must match the agent's configured secret.
	Secret string `yaml:"secret"`

	// LogLevel overrides the default info level when set.
	LogLevel string `yaml:"log_level"`
}

// LoadConfig reads the collector's YAML config with defaults applied
// before unmarshalling.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Listen: "0.0.0.0:8080",
		DBPath: "playwatch.db",
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
