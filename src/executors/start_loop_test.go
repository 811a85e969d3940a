package executors

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"opsportal/src/connectors"
	"opsportal/src/controller"
	"opsportal/src/notify"
)

type fakeRunner struct {
	mu         sync.Mutex
	fastCalls  int
	fullCalls  int
	fastErr    error
	cancelWhen int // cancel the loop once this many total cycles ran
	cancel     context.CancelFunc
}

func (f *fakeRunner) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fastCalls + f.fullCalls
}

func (f *fakeRunner) maybeCancel() {
	if f.cancel != nil && f.fastCalls+f.fullCalls >= f.cancelWhen {
		f.cancel()
	}
}

func (f *fakeRunner) RunFastCheck(ctx context.Context) (controller.CycleStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fastCalls++
	f.maybeCancel()
	if f.fastErr != nil {
		return controller.CycleStats{Mode: "fast_check"}, f.fastErr
	}
	return controller.CycleStats{Mode: "fast_check", FinishedAt: time.Now()}, nil
}

func (f *fakeRunner) RunFullReconcile(ctx context.Context) (controller.CycleStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fullCalls++
	f.maybeCancel()
	return controller.CycleStats{Mode: "full_reconcile", FinishedAt: time.Now()}, nil
}

func withFakeService(t *testing.T, runner *fakeRunner) {
	t.Helper()
	old := newSyncService
	t.Cleanup(func() { newSyncService = old })
	newSyncService = func(hub *notify.Hub) (cycleRunner, error) {
		return runner, nil
	}
}

// Every 3rd cycle must be a full reconcile, the rest fast checks.
func TestLoopAlternatesFastAndFullCycles(t *testing.T) {
	t.Setenv("FAST_CHECK_INTERVAL", "5ms")
	t.Setenv("FULL_RECONCILE_EVERY", "3")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	runner := &fakeRunner{cancelWhen: 6, cancel: cancel}
	withFakeService(t, runner)

	cursor := &SyncCursor{}
	if err := StartLoop(ctx, notify.NewHub(), cursor); err != nil {
		t.Fatalf("StartLoop: %v", err)
	}

	if runner.fullCalls != 2 {
		t.Fatalf("full reconciles = %d, want 2 (cycles 3 and 6)", runner.fullCalls)
	}
	if runner.fastCalls != 4 {
		t.Fatalf("fast checks = %d, want 4", runner.fastCalls)
	}

	snap := cursor.Snapshot()
	if snap.CycleCount != 6 {
		t.Fatalf("cycle count = %d, want 6", snap.CycleCount)
	}
	if snap.ConsecutiveFailures != 0 {
		t.Fatalf("failures = %d, want 0", snap.ConsecutiveFailures)
	}
}

func TestLoopTracksConsecutiveFailures(t *testing.T) {
	t.Setenv("FAST_CHECK_INTERVAL", "5ms")
	t.Setenv("FULL_RECONCILE_EVERY", "0")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	runner := &fakeRunner{
		fastErr:    errors.New("store unreachable"),
		cancelWhen: 3,
		cancel:     cancel,
	}
	withFakeService(t, runner)

	cursor := &SyncCursor{}
	if err := StartLoop(ctx, notify.NewHub(), cursor); err != nil {
		t.Fatalf("StartLoop: %v", err)
	}

	snap := cursor.Snapshot()
	if snap.ConsecutiveFailures != 3 {
		t.Fatalf("failures = %d, want 3", snap.ConsecutiveFailures)
	}
	if snap.LastError == "" {
		t.Fatal("last error not recorded")
	}
	if !snap.LastSuccess.IsZero() {
		t.Fatal("no success should be recorded")
	}
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	t.Setenv("FAST_CHECK_INTERVAL", "1h")

	runner := &fakeRunner{}
	withFakeService(t, runner)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- StartLoop(ctx, notify.NewHub(), &SyncCursor{})
	}()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("StartLoop: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancellation")
	}

	if runner.total() != 0 {
		t.Fatalf("cycles ran = %d, want 0", runner.total())
	}
}

func TestBackoffTiers(t *testing.T) {
	config := Config{
		FastCheckInterval: 2 * time.Minute,
		BackoffTier1After: 3,
		BackoffTier2After: 6,
		BackoffTier1Mult:  2,
		BackoffTier2Mult:  5,
	}

	cases := []struct {
		failures int
		want     time.Duration
	}{
		{0, 2 * time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{5, 4 * time.Minute},
		{6, 10 * time.Minute},
		{20, 10 * time.Minute},
	}

	for _, tc := range cases {
		if got := intervalFor(config, tc.failures); got != tc.want {
			t.Fatalf("intervalFor(%d) = %v, want %v", tc.failures, got, tc.want)
		}
	}
}

func TestResolveCredentialsPrefersEncrypted(t *testing.T) {
	old := decryptString
	t.Cleanup(func() { decryptString = old })

	decryptString = func(encoded string) (string, error) {
		return "dec:" + encoded, nil
	}

	config := connectors.Config{
		WooConsumerKey:    "plainkey",
		WooConsumerSecret: "plainsecret",
		WooConsumerKeyEnc: "enckey",
		WooConsumerSecEnc: "encsecret",
	}

	key, secret, err := resolveCredentials(config)
	if err != nil {
		t.Fatalf("resolveCredentials: %v", err)
	}
	if key != "dec:enckey" || secret != "dec:encsecret" {
		t.Fatalf("got %q / %q, want decrypted pair", key, secret)
	}
}

func TestResolveCredentialsPlaintextFallback(t *testing.T) {
	config := connectors.Config{
		WooConsumerKey:    "plainkey",
		WooConsumerSecret: "plainsecret",
	}

	key, secret, err := resolveCredentials(config)
	if err != nil {
		t.Fatalf("resolveCredentials: %v", err)
	}
	if key != "plainkey" || secret != "plainsecret" {
		t.Fatalf("got %q / %q, want plaintext pair", key, secret)
	}
}

func TestResolveCredentialsMissing(t *testing.T) {
	if _, _, err := resolveCredentials(connectors.Config{}); err == nil {
		t.Fatal("expected error when no credentials are configured")
	}
}
