//go:build !windows

package procwatch

import "github.com/playwatch/playwatch/internal/config"

// NewOSSource returns the platform's best event source: pid-set polling
// everywhere push notifications are unavailable.
func NewOSSource(cfg *config.Config) (Source, error) {
	return NewPollSource(cfg.PollInterval)
}
