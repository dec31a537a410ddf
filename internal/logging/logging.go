package logging

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu      sync.Mutex
	level   = logrus.InfoLevel
	loggers = make(map[string]*logrus.Entry)
)

// SetLevel overrides the log level for all loggers created afterwards.
// Intended to be called once at startup after the configuration is loaded.
func SetLevel(name string) {
	mu.Lock()
	defer mu.Unlock()
	parsed, err := logrus.ParseLevel(name)
	if err != nil {
		return
	}
	level = parsed
	for _, entry := range loggers {
		entry.Logger.SetLevel(parsed)
	}
}

// NewLogger returns a logger scoped to a component. Loggers are cached per
// component so repeated calls share the same underlying logrus instance.
// The PLAYWATCH_LOG_LEVEL environment variable takes precedence over
// SetLevel; unset or unparsable values leave the default (info) in place.
func NewLogger(component string) *logrus.Entry {
	mu.Lock()
	defer mu.Unlock()

	if entry, ok := loggers[component]; ok {
		return entry
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	effective := level
	if env := os.Getenv("PLAYWATCH_LOG_LEVEL"); env != "" {
		if parsed, err := logrus.ParseLevel(env); err == nil {
			effective = parsed
		}
	}
	logger.SetLevel(effective)

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}
