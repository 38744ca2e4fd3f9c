package session

import (
	"log/slog"
	"time"

	"github.com/jameskane05/nanauts-sub000/internal/state"
)

// SurfaceWatchdog fails room setup when no surface shows up in time. It is
// polled from the frame loop against the start timestamp; there is no
// timer goroutine.
type SurfaceWatchdog struct {
	store   *state.Store
	timeout time.Duration
	started time.Time
	running bool
	logger  *slog.Logger
}

// NewSurfaceWatchdog returns a stopped watchdog.
func NewSurfaceWatchdog(store *state.Store, timeout time.Duration) *SurfaceWatchdog {
	return &SurfaceWatchdog{store: store, timeout: timeout, logger: slog.Default()}
}

// Start arms the watchdog from now. Restarting resets the start time.
func (w *SurfaceWatchdog) Start(now time.Time) {
	w.started = now
	w.running = true
}

// Stop disarms the watchdog.
func (w *SurfaceWatchdog) Stop() { w.running = false }

// Running reports whether the watchdog is armed.
func (w *SurfaceWatchdog) Running() bool { return w.running }

// Timeout returns the configured timeout.
func (w *SurfaceWatchdog) Timeout() time.Duration { return w.timeout }

// Tick checks the deadline. It disarms itself once a surface is detected,
// and reports true on the tick that marked room setup as failed.
func (w *SurfaceWatchdog) Tick(now time.Time) bool {
	if !w.running {
		return false
	}
	if w.store.Get().Bool(state.SurfaceDetected) {
		w.running = false
		return false
	}
	if now.Sub(w.started) < w.timeout {
		return false
	}
	w.running = false
	w.logger.Warn("[SESSION] no surface detected", "timeout", w.timeout)
	w.store.Set(state.Update{
		state.RoomSetupInProgress: false,
		state.RoomSetupFailed:     true,
	})
	return true
}
