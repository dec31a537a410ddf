package procwatch

// Event is one process-start or process-end fact reported by the OS.
type Event struct {
	// PID is unique only while the process is alive; the OS may reuse it
	// after termination.
	PID uint32

	// Executable is the process image name, e.g. "app.exe".
	Executable string

	// Path is the absolute executable path. Empty when the OS reports
	// none (typical for kernel-side processes).
	Path string

	// ParentPID is carried through from the OS but not consulted by the
	// monitor.
	ParentPID uint32
}

// Notification is one item from a feed: either an event or a feed-level
// error for an item that could not be read. A feed error never ends the
// feed; the monitor logs it and moves on.
type Notification struct {
	Event Event
	Err   error
}

// Source provides the two live notification feeds the monitor multiplexes.
// Both channels close when the source shuts down or loses its OS
// connection; a closed source cannot be restarted.
//
// Implementations own their goroutines. Feed establishment failures are
// reported by the constructor, not through the channels.
type Source interface {
	Starts() <-chan Notification
	Ends() <-chan Notification
	Close() error
}
