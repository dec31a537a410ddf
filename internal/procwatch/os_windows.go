//go:build windows

package procwatch

import "github.com/playwatch/playwatch/internal/config"

// NewOSSource returns the platform's best event source: WMI push
// notifications on Windows.
func NewOSSource(cfg *config.Config) (Source, error) {
	return NewWMISource()
}
