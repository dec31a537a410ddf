//go:build windows

package procwatch

import (
	"fmt"
	"runtime"
	"sync"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"github.com/playwatch/playwatch/internal/logging"

	"github.com/sirupsen/logrus"
)

// wbemErrTimedOut is the HRESULT SWbemEventSource.NextEvent raises when the
// wait times out with no event pending.
const wbemErrTimedOut = 0x80043001

// nextEventTimeoutMs bounds each NextEvent wait so the feed goroutines can
// notice Close.
const nextEventTimeoutMs = 1000

// WMISource subscribes to Win32_Process instance creation and deletion
// events through WMI. Each feed runs its own notification query on its own
// OS thread (COM apartments are per-thread).
type WMISource struct {
	starts   chan Notification
	ends     chan Notification
	stop     chan struct{}
	stopOnce sync.Once
	logger   *logrus.Entry
}

// NewWMISource establishes both notification queries. Failure of either is
// returned, since an agent without feeds has nothing to do.
func NewWMISource() (*WMISource, error) {
	s := &WMISource{
		starts: make(chan Notification, 16),
		ends:   make(chan Notification, 16),
		stop:   make(chan struct{}),
		logger: logging.NewLogger("wmi-source"),
	}

	ready := make(chan error, 2)
	go s.watch("__InstanceCreationEvent", s.starts, ready)
	go s.watch("__InstanceDeletionEvent", s.ends, ready)

	for i := 0; i < 2; i++ {
		if err := <-ready; err != nil {
			s.Close()
			return nil, fmt.Errorf("establishing WMI notification query: %w", err)
		}
	}
	return s, nil
}

func (s *WMISource) Starts() <-chan Notification { return s.starts }
func (s *WMISource) Ends() <-chan Notification   { return s.ends }

func (s *WMISource) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// watch runs one notification query until Close. The first error (or nil
// once the query is established) goes to ready; everything after that flows
// through the notification channel.
func (s *WMISource) watch(eventClass string, ch chan Notification, ready chan<- error) {
	defer close(ch)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		ready <- err
		return
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		ready <- err
		return
	}
	defer unknown.Release()

	locator, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		ready <- err
		return
	}
	defer locator.Release()

	serviceRaw, err := oleutil.CallMethod(locator, "ConnectServer")
	if err != nil {
		ready <- err
		return
	}
	service := serviceRaw.ToIDispatch()
	defer service.Release()

	query := fmt.Sprintf(
		"SELECT * FROM %s WITHIN 1 WHERE TargetInstance ISA 'Win32_Process'", eventClass)
	resultRaw, err := oleutil.CallMethod(service, "ExecNotificationQuery", query)
	if err != nil {
		ready <- err
		return
	}
	events := resultRaw.ToIDispatch()
	defer events.Release()

	ready <- nil
	s.logger.Debugf("Subscribed to %s notifications", eventClass)

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		eventRaw, err := oleutil.CallMethod(events, "NextEvent", nextEventTimeoutMs)
		if err != nil {
			if isWbemTimeout(err) {
				continue
			}
			// The query is dead; the feed ends here.
			s.logger.Warnf("%s notification query lost: %v", eventClass, err)
			return
		}

		event, err := eventFromNotification(eventRaw.ToIDispatch())
		if err != nil {
			s.emit(ch, Notification{Err: err})
			continue
		}
		s.emit(ch, Notification{Event: event})
	}
}

func (s *WMISource) emit(ch chan Notification, n Notification) {
	select {
	case ch <- n:
	case <-s.stop:
	}
}

// eventFromNotification pulls the Win32_Process properties out of an
// __InstanceCreationEvent/__InstanceDeletionEvent object.
func eventFromNotification(notification *ole.IDispatch) (Event, error) {
	defer notification.Release()

	targetRaw, err := oleutil.GetProperty(notification, "TargetInstance")
	if err != nil {
		return Event{}, fmt.Errorf("reading TargetInstance: %w", err)
	}
	target := targetRaw.ToIDispatch()
	defer target.Release()

	pid, err := uintProperty(target, "ProcessId")
	if err != nil {
		return Event{}, err
	}
	name, err := stringProperty(target, "Name")
	if err != nil {
		return Event{}, err
	}
	// ExecutablePath is legitimately NULL for system processes; ignore
	// lookup failures the same way.
	path, _ := stringProperty(target, "ExecutablePath")
	ppid, _ := uintProperty(target, "ParentProcessId")

	return Event{
		PID:        pid,
		Executable: name,
		Path:       path,
		ParentPID:  ppid,
	}, nil
}

func uintProperty(obj *ole.IDispatch, name string) (uint32, error) {
	prop, err := oleutil.GetProperty(obj, name)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", name, err)
	}
	defer prop.Clear()

	switch v := prop.Value().(type) {
	case int32:
		return uint32(v), nil
	case int64:
		return uint32(v), nil
	case uint32:
		return v, nil
	case float64:
		return uint32(v), nil
	default:
		return 0, fmt.Errorf("property %s has unexpected type %T", name, v)
	}
}

func stringProperty(obj *ole.IDispatch, name string) (string, error) {
	prop, err := oleutil.GetProperty(obj, name)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	defer prop.Clear()

	if v, ok := prop.Value().(string); ok {
		return v, nil
	}
	// VT_NULL for optional properties like ExecutablePath.
	return "", fmt.Errorf("property %s is not a string", name)
}

func isWbemTimeout(err error) bool {
	oleErr, ok := err.(*ole.OleError)
	if !ok {
		return false
	}
	return oleErr.Code() == wbemErrTimedOut
}
