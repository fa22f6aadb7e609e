package cloudsync

import (
	"context"
	"errors"
	"testing"
)

func TestMonitorStartsOffline(test *testing.T) {
	test.Parallel()
	monitor := mustMonitor(test, newRemoteStub())
	if monitor.Status() != StatusOffline {
		test.Fatalf("expected offline start, got %s", monitor.Status())
	}
	if monitor.LastSyncUnixUTC() != 0 {
		test.Fatalf("expected zero last sync, got %d", monitor.LastSyncUnixUTC())
	}
}

func TestHandleOnlineRequiresSuccessfulProbe(test *testing.T) {
	test.Parallel()
	remote := newRemoteStub()
	remote.probeErr = errors.New("connection refused")
	monitor := mustMonitor(test, remote)

	// The platform says online, but the remote store disagrees.
	if status := monitor.HandleOnline(context.Background()); status != StatusOffline {
		test.Fatalf("expected offline after failed probe, got %s", status)
	}
	if monitor.Status() != StatusOffline {
		test.Fatalf("expected offline status, got %s", monitor.Status())
	}

	remote.probeErr = nil
	if status := monitor.HandleOnline(context.Background()); status != StatusOnline {
		test.Fatalf("expected online after successful probe, got %s", status)
	}
}

func TestHandleOfflineAppliesImmediately(test *testing.T) {
	test.Parallel()
	remote := newRemoteStub()
	monitor := mustMonitor(test, remote)
	monitor.ProbeNow(context.Background())
	if monitor.Status() != StatusOnline {
		test.Fatalf("expected online before signal, got %s", monitor.Status())
	}

	monitor.HandleOffline()
	if monitor.Status() != StatusOffline {
		test.Fatalf("expected offline after signal, got %s", monitor.Status())
	}
}

func TestProbeNowWithoutRemote(test *testing.T) {
	test.Parallel()
	monitor := mustMonitor(test, nil)
	if status := monitor.ProbeNow(context.Background()); status != StatusOffline {
		test.Fatalf("expected offline without a remote store, got %s", status)
	}
}

func TestProbeNowSkipsWhileSyncing(test *testing.T) {
	test.Parallel()
	remote := newRemoteStub()
	monitor := mustMonitor(test, remote)
	monitor.beginSync()

	if status := monitor.ProbeNow(context.Background()); status != StatusSyncing {
		test.Fatalf("expected syncing state preserved, got %s", status)
	}
	monitor.finishSync(StatusOnline, 200)
	if monitor.Status() != StatusOnline {
		test.Fatalf("expected online after drain, got %s", monitor.Status())
	}
	if monitor.LastSyncUnixUTC() != 200 {
		test.Fatalf("expected last sync 200, got %d", monitor.LastSyncUnixUTC())
	}
}

func TestSubscribeObservesTransitions(test *testing.T) {
	test.Parallel()
	remote := newRemoteStub()
	monitor := mustMonitor(test, remote)
	var observed []Status
	unsubscribe := monitor.Subscribe(func(status Status) {
		observed = append(observed, status)
	})

	monitor.ProbeNow(context.Background())
	monitor.HandleOffline()
	if len(observed) != 2 || observed[0] != StatusOnline || observed[1] != StatusOffline {
		test.Fatalf("unexpected transition sequence: %v", observed)
	}

	// Re-applying the current state is not a transition.
	monitor.HandleOffline()
	if len(observed) != 2 {
		test.Fatalf("expected no notification for same-state signal, got %v", observed)
	}

	unsubscribe()
	monitor.ProbeNow(context.Background())
	if len(observed) != 2 {
		test.Fatalf("expected no notifications after unsubscribe, got %v", observed)
	}
}

func TestSubscribeLastSyncObservesCompletions(test *testing.T) {
	test.Parallel()
	monitor := mustMonitor(test, newRemoteStub())
	var observed []int64
	unsubscribe := monitor.SubscribeLastSync(func(completedUnixUTC int64) {
		observed = append(observed, completedUnixUTC)
	})

	monitor.beginSync()
	monitor.finishSync(StatusOnline, 300)
	if len(observed) != 1 || observed[0] != 300 {
		test.Fatalf("unexpected last-sync notifications: %v", observed)
	}

	// Failed passes do not move the last-sync time.
	monitor.beginSync()
	monitor.finishSync(StatusError, 0)
	if len(observed) != 1 {
		test.Fatalf("expected no notification for failed pass, got %v", observed)
	}
	if monitor.LastSyncUnixUTC() != 300 {
		test.Fatalf("expected last sync preserved, got %d", monitor.LastSyncUnixUTC())
	}

	unsubscribe()
	monitor.beginSync()
	monitor.finishSync(StatusOnline, 400)
	if len(observed) != 1 {
		test.Fatalf("expected no notifications after unsubscribe, got %v", observed)
	}
}

func TestSubscribeNilObserver(test *testing.T) {
	test.Parallel()
	monitor := mustMonitor(test, newRemoteStub())
	unsubscribe := monitor.Subscribe(nil)
	unsubscribe()
	unsubscribeLastSync := monitor.SubscribeLastSync(nil)
	unsubscribeLastSync()
}
