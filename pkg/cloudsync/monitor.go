package cloudsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultProbeInterval is the heartbeat cadence while the remote store
// is believed reachable.
const DefaultProbeInterval = 30 * time.Second

// Monitor owns the connectivity state machine and its observers. A
// platform "online" hint never sets the status directly: only a
// successful probe against the remote store does, so a captive portal
// or remote outage is reported as offline regardless of what the
// operating system believes. An "offline" hint is applied immediately.
type Monitor struct {
	mu               sync.Mutex
	status           Status
	lastSyncUnixUTC  int64
	remote           RemoteStore
	interval         time.Duration
	logger           *zap.Logger
	nextSubscriberID int
	statusSubs       map[int]func(Status)
	lastSyncSubs     map[int]func(int64)
}

// MonitorOption configures a Monitor instance.
type MonitorOption func(*Monitor)

// WithProbeInterval overrides the heartbeat cadence.
func WithProbeInterval(interval time.Duration) MonitorOption {
	return func(monitor *Monitor) {
		if interval > 0 {
			monitor.interval = interval
		}
	}
}

// WithMonitorLogger wires a zap logger for transition logging.
func WithMonitorLogger(logger *zap.Logger) MonitorOption {
	return func(monitor *Monitor) {
		if logger != nil {
			monitor.logger = logger
		}
	}
}

// NewMonitor wires a Monitor. A nil remote store is allowed: the
// monitor then reports offline until one is configured, because there
// is nothing to probe.
func NewMonitor(remote RemoteStore, options ...MonitorOption) (*Monitor, error) {
	monitor := &Monitor{
		status:       StatusOffline,
		remote:       remote,
		interval:     DefaultProbeInterval,
		statusSubs:   make(map[int]func(Status)),
		lastSyncSubs: make(map[int]func(int64)),
	}
	for _, option := range options {
		if option != nil {
			option(monitor)
		}
	}
	if monitor.interval <= 0 {
		return nil, fmt.Errorf("%w: probe interval must be positive", ErrInvalidMonitorConfig)
	}
	return monitor, nil
}

// Status returns the current connectivity state.
func (monitor *Monitor) Status() Status {
	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	return monitor.status
}

// LastSyncUnixUTC returns the last successful sync completion time, or
// zero when nothing has synced yet.
func (monitor *Monitor) LastSyncUnixUTC() int64 {
	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	return monitor.lastSyncUnixUTC
}

// Subscribe registers a status observer invoked synchronously on every
// transition. The returned function unsubscribes it.
func (monitor *Monitor) Subscribe(observer func(Status)) func() {
	if observer == nil {
		return func() {}
	}
	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	id := monitor.nextSubscriberID
	monitor.nextSubscriberID++
	monitor.statusSubs[id] = observer
	return func() {
		monitor.mu.Lock()
		defer monitor.mu.Unlock()
		delete(monitor.statusSubs, id)
	}
}

// SubscribeLastSync registers a last-sync-time observer invoked
// synchronously whenever a sync pass completes.
func (monitor *Monitor) SubscribeLastSync(observer func(int64)) func() {
	if observer == nil {
		return func() {}
	}
	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	id := monitor.nextSubscriberID
	monitor.nextSubscriberID++
	monitor.lastSyncSubs[id] = observer
	return func() {
		monitor.mu.Lock()
		defer monitor.mu.Unlock()
		delete(monitor.lastSyncSubs, id)
	}
}

// HandleOffline applies a platform-level offline signal immediately.
// Fail-fast: no probe is needed to conclude the remote is unreachable.
func (monitor *Monitor) HandleOffline() {
	monitor.transition(StatusOffline)
}

// HandleOnline reacts to a platform-level online signal by probing the
// remote store. The signal itself is never trusted.
func (monitor *Monitor) HandleOnline(ctx context.Context) Status {
	return monitor.ProbeNow(ctx)
}

// ProbeNow runs a reachability probe and transitions accordingly. While
// a drain is in flight the syncing state is left untouched.
func (monitor *Monitor) ProbeNow(ctx context.Context) Status {
	monitor.mu.Lock()
	if monitor.status == StatusSyncing {
		status := monitor.status
		monitor.mu.Unlock()
		return status
	}
	remote := monitor.remote
	monitor.mu.Unlock()

	if remote == nil {
		monitor.transition(StatusOffline)
		return StatusOffline
	}
	if err := remote.Probe(ctx); err != nil {
		if monitor.logger != nil {
			monitor.logger.Debug("remote probe failed", zap.Error(err))
		}
		monitor.transition(StatusOffline)
		return StatusOffline
	}
	monitor.transition(StatusOnline)
	return StatusOnline
}

// Run drives the heartbeat: a probe every interval while the remote is
// currently believed reachable. Returns when ctx is done.
func (monitor *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(monitor.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if monitor.Status() == StatusOnline {
				monitor.ProbeNow(ctx)
			}
		}
	}
}

// beginSync marks the drain in progress.
func (monitor *Monitor) beginSync() {
	monitor.transition(StatusSyncing)
}

// finishSync records the outcome of a drain or bulk pass.
func (monitor *Monitor) finishSync(status Status, completedUnixUTC int64) {
	if status == StatusOnline && completedUnixUTC > 0 {
		monitor.mu.Lock()
		monitor.lastSyncUnixUTC = completedUnixUTC
		observers := make([]func(int64), 0, len(monitor.lastSyncSubs))
		for _, observer := range monitor.lastSyncSubs {
			observers = append(observers, observer)
		}
		monitor.mu.Unlock()
		for _, observer := range observers {
			observer(completedUnixUTC)
		}
	}
	monitor.transition(status)
}

func (monitor *Monitor) transition(next Status) {
	monitor.mu.Lock()
	if monitor.status == next {
		monitor.mu.Unlock()
		return
	}
	previous := monitor.status
	monitor.status = next
	observers := make([]func(Status), 0, len(monitor.statusSubs))
	for _, observer := range monitor.statusSubs {
		observers = append(observers, observer)
	}
	monitor.mu.Unlock()

	if monitor.logger != nil {
		monitor.logger.Info("connectivity transition",
			zap.String("from", previous.String()),
			zap.String("to", next.String()),
		)
	}
	for _, observer := range observers {
		observer(next)
	}
}
