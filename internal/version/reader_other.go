//go:build !windows

package version

import "errors"

var errUnsupported = errors.New("version information is not available on this platform")

// stubReader stands in on platforms without an embedded version-info API.
// Every lookup misses, so callers display the raw executable name.
type stubReader struct{}

func newPlatformReader() InfoReader {
	return stubReader{}
}

func (stubReader) Read(string) (Block, error) {
	return nil, errUnsupported
}
