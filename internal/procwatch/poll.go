package procwatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"github.com/playwatch/playwatch/internal/logging"
)

// PollSource synthesizes start/end notifications by diffing the live pid
// set on a fixed interval. It is the feed on platforms without a push
// notification service. Executable name and path are captured at first
// sight so end events still carry them after the process is gone.
type PollSource struct {
	interval time.Duration
	snapshot func() (map[uint32]Event, error)
	starts   chan Notification
	ends     chan Notification
	stop     chan struct{}
	stopOnce sync.Once
	known    map[uint32]Event
	logger   *logrus.Entry
}

// NewPollSource establishes the polling feed. The initial process scan
// doubles as the feed-establishment check: if the OS won't enumerate
// processes now, it won't later either, and that is fatal at startup.
// Processes already running at establishment are baseline, not starts.
func NewPollSource(interval time.Duration) (*PollSource, error) {
	return newPollSource(interval, processSnapshot)
}

func newPollSource(interval time.Duration, snapshot func() (map[uint32]Event, error)) (*PollSource, error) {
	baseline, err := snapshot()
	if err != nil {
		return nil, fmt.Errorf("establishing process feed: %w", err)
	}

	s := &PollSource{
		interval: interval,
		snapshot: snapshot,
		starts:   make(chan Notification, 16),
		ends:     make(chan Notification, 16),
		stop:     make(chan struct{}),
		known:    baseline,
		logger:   logging.NewLogger("poll-source"),
	}
	go s.run()
	return s, nil
}

func (s *PollSource) Starts() <-chan Notification { return s.starts }
func (s *PollSource) Ends() <-chan Notification   { return s.ends }

// Close stops the feed goroutine; both channels close once it exits.
func (s *PollSource) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *PollSource) run() {
	defer close(s.starts)
	defer close(s.ends)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

func (s *PollSource) poll() {
	snap, err := s.snapshot()
	if err != nil {
		// A failed scan is a feed-level error on one tick, not the end
		// of the feed.
		s.emit(s.starts, Notification{Err: fmt.Errorf("enumerating processes: %w", err)})
		return
	}

	for pid, event := range snap {
		if _, ok := s.known[pid]; !ok {
			s.emit(s.starts, Notification{Event: event})
		}
	}
	for pid, event := range s.known {
		if _, ok := snap[pid]; !ok {
			s.emit(s.ends, Notification{Event: event})
		}
	}
	s.known = snap
}

func (s *PollSource) emit(ch chan Notification, n Notification) {
	select {
	case ch <- n:
	case <-s.stop:
	}
}

// processSnapshot enumerates the live pid set. Per-process lookups race
// with process exit, so individual failures just drop that process from
// the snapshot.
func processSnapshot() (map[uint32]Event, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	snap := make(map[uint32]Event, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		event := Event{
			PID:        uint32(p.Pid),
			Executable: name,
		}
		if path, err := p.Exe(); err == nil {
			event.Path = path
		}
		if ppid, err := p.Ppid(); err == nil && ppid > 0 {
			event.ParentPID = uint32(ppid)
		}
		snap[event.PID] = event
	}
	return snap, nil
}
