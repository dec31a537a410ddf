// Package procwatch is the process lifecycle watch engine: it consumes the
// OS process-start/process-end feeds, correlates them through a watch
// table, and turns qualifying runs into submissions.
package procwatch

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/playwatch/playwatch/internal/config"
	"github.com/playwatch/playwatch/internal/logging"
	"github.com/playwatch/playwatch/internal/wire"
)

// ErrSourceExhausted is returned by Run when both notification feeds have
// closed. The OS connection is gone and there is no in-process reconnect;
// the operator restarts the agent.
var ErrSourceExhausted = errors.New("process notification feeds exhausted")

// NameResolver looks up a display name for an executable path. An empty
// string means no name could be determined.
type NameResolver interface {
	Resolve(path string) string
}

// Submitter reports a finished session to the collector. Implementations
// never surface failure to the caller.
type Submitter interface {
	Submit(cfg *config.Config, sub wire.Submission)
}

// Watch is an open tracking record for one live monitored process.
type Watch struct {
	Start      time.Time
	Executable string
	Name       string // resolved display name, "" when unresolved
}

// Monitor drives the event loop. The watch table is owned exclusively by
// Run's goroutine and needs no locking; the config store is the only state
// shared with other goroutines.
type Monitor struct {
	store     *config.Store
	source    Source
	resolver  NameResolver
	submitter Submitter
	watches   map[uint32]Watch
	now       func() time.Time
	logger    *logrus.Entry
}

func NewMonitor(store *config.Store, source Source, resolver NameResolver, submitter Submitter) *Monitor {
	return &Monitor{
		store:     store,
		source:    source,
		resolver:  resolver,
		submitter: submitter,
		watches:   make(map[uint32]Watch),
		now:       time.Now,
		logger:    logging.NewLogger("monitor"),
	}
}

// Run multiplexes the two feeds until the context is cancelled or both
// feeds close. Event handling is synchronous: a submission in flight delays
// the next event. No fairness between the feeds is guaranteed or needed.
func (m *Monitor) Run(ctx context.Context) error {
	starts := m.source.Starts()
	ends := m.source.Ends()

	m.logger.Info("Listening to events")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-starts:
			if !ok {
				starts = nil
				break
			}
			m.handleStart(n)
		case n, ok := <-ends:
			if !ok {
				ends = nil
				break
			}
			m.handleEnd(n)
		}
		if starts == nil && ends == nil {
			return ErrSourceExhausted
		}
	}
}

func (m *Monitor) handleStart(n Notification) {
	if n.Err != nil {
		m.logger.Warnf("Could not process start event: %v", n.Err)
		return
	}
	event := n.Event

	// Processes with no reported path are OS-internal, not user workloads.
	if event.Path == "" {
		m.logger.Debugf("Process %s (%d) does not have a path", event.Executable, event.PID)
		return
	}

	cfg := m.store.Current()
	if !cfg.IsMonitored(event.Path) {
		m.logger.Debugf("Process %s (%d) isn't configured for watching", event.Executable, event.PID)
		return
	}

	// A second start for a live pid overwrites the existing watch.
	watch := Watch{
		Start:      m.now(),
		Executable: event.Executable,
		Name:       m.resolver.Resolve(event.Path),
	}
	m.watches[event.PID] = watch
	m.logger.Infof("Starting watch for %s (%d %s)", displayName(watch), event.PID, watch.Executable)
}

func (m *Monitor) handleEnd(n Notification) {
	if n.Err != nil {
		m.logger.Warnf("Could not process end event: %v", n.Err)
		return
	}

	watch, ok := m.watches[n.Event.PID]
	if !ok {
		// Never admitted, or already replaced. Expected, not an error.
		return
	}
	delete(m.watches, n.Event.PID)

	seconds := uint64(m.now().Sub(watch.Start) / time.Second)
	m.logger.Infof("Process %s (%s) ran for %d seconds", displayName(watch), watch.Executable, seconds)

	cfg := m.store.Current()
	if seconds < cfg.MinimumDuration {
		m.logger.Infof("Skipping submission: doesn't meet minimum duration of %d seconds", cfg.MinimumDuration)
		return
	}

	sub := wire.Submission{
		Duration:   seconds,
		Executable: watch.Executable,
	}
	if watch.Name != "" {
		sub.Name = &watch.Name
	}
	m.submitter.Submit(cfg, sub)
}

func displayName(w Watch) string {
	if w.Name == "" {
		return "?"
	}
	return w.Name
}
