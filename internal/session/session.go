// Package session adapts host events (visibility changes, room capture,
// per-frame ticks) into store updates.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jameskane05/nanauts-sub000/internal/behavior"
	"github.com/jameskane05/nanauts-sub000/internal/state"
)

// ErrWorldSet is returned when SetWorld is called a second time.
var ErrWorldSet = errors.New("world already set")

// DefaultSurfaceTimeout is how long room setup waits for a surface before
// reporting failure.
const DefaultSurfaceTimeout = 10 * time.Second

// #region adapter

// Adapter is the thin layer between the XR host and the store. It must be
// called from the goroutine that drives the frame loop.
type Adapter struct {
	store    *state.Store
	ticker   *behavior.Ticker
	watchdog *SurfaceWatchdog
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// WithBehavior makes Tick drive the behavior machine's timed states.
func WithBehavior(m *behavior.Machine) Option {
	return func(a *Adapter) { a.ticker = behavior.NewTicker(m) }
}

// WithSurfaceTimeout sets the surface watchdog timeout.
func WithSurfaceTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.watchdog.timeout = d }
}

// NewAdapter builds an adapter for store.
func NewAdapter(store *state.Store, opts ...Option) *Adapter {
	a := &Adapter{
		store:    store,
		watchdog: NewSurfaceWatchdog(store, DefaultSurfaceTimeout),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.watchdog.logger = a.logger
	return a
}

// Watchdog returns the surface watchdog.
func (a *Adapter) Watchdog() *SurfaceWatchdog { return a.watchdog }

// #endregion adapter

// #region visibility

func pausable(p state.Phase) bool {
	return p == state.XRActive || p == state.Playing || p == state.PortalPlacement
}

// HandleVisibility applies a host visibility change. It reports whether
// the store was updated; combinations outside the transition table are
// ignored.
func (a *Adapter) HandleVisibility(v Visibility) bool {
	snap := a.store.Get()
	phase := snap.Phase()

	var u state.Update
	switch v {
	case NonImmersive:
		if phase == state.StartScreen {
			return false
		}
		u = state.Update{
			state.CurrentState:     state.StartScreen,
			state.StateBeforePause: nil,
			state.XRPauseReason:    nil,
		}
	case Visible:
		switch phase {
		case state.EnteringXR:
			u = state.Update{state.CurrentState: state.XRActive}
		case state.XRPaused:
			resume, ok := snap.PhaseOf(state.StateBeforePause)
			if !ok {
				resume = state.XRActive
			}
			u = state.Update{
				state.CurrentState:     resume,
				state.StateBeforePause: nil,
				state.XRPauseReason:    nil,
			}
		}
	case Hidden, VisibleBlurred:
		switch {
		case pausable(phase):
			u = state.Update{
				state.CurrentState:     state.XRPaused,
				state.StateBeforePause: phase,
				state.XRPauseReason:    v.String(),
			}
		case phase == state.XRPaused:
			if reason, _ := snap.Text(state.XRPauseReason); reason != v.String() {
				u = state.Update{state.XRPauseReason: v.String()}
			}
		}
	}
	if u == nil {
		a.logger.Debug("[SESSION] visibility ignored", "visibility", v.String(), "phase", phase.String())
		return false
	}
	a.logger.Info("[SESSION] visibility", "visibility", v.String(), "from", phase.String())
	a.store.Set(u)
	return true
}

// EnterXR moves the start screen into EnteringXR. It reports false from any
// other phase.
func (a *Adapter) EnterXR() bool {
	if a.store.Get().Phase() != state.StartScreen {
		return false
	}
	a.store.Set(state.Update{state.CurrentState: state.EnteringXR})
	return true
}

// SetWorld publishes the engine's world handle. It may be set only once.
func (a *Adapter) SetWorld(h any) error {
	if h == nil {
		return errors.New("world handle is nil")
	}
	if a.store.Get().Get(state.World) != nil {
		return ErrWorldSet
	}
	a.store.Set(state.Update{state.World: h})
	return nil
}

// #endregion visibility

// #region room-setup

// RunRoomCapture runs the host's room capture. Failures, including a
// cancelled ctx, become roomSetupFailed rather than a returned error.
func (a *Adapter) RunRoomCapture(ctx context.Context, capture func(context.Context) error) {
	a.store.Set(state.Update{
		state.RoomSetupInProgress: true,
		state.RoomSetupFailed:     false,
	})
	a.watchdog.Start(a.now())

	err := ctx.Err()
	if err == nil {
		err = runCapture(ctx, capture)
	}
	if err != nil {
		a.watchdog.Stop()
		a.logger.Warn("[SESSION] room capture failed", "error", err)
		a.store.Set(state.Update{
			state.RoomSetupInProgress: false,
			state.RoomSetupFailed:     true,
		})
		return
	}
	a.logger.Info("[SESSION] room capture complete")
	a.store.Set(state.Update{
		state.RoomSetupInProgress: false,
		state.RoomSetupRequired:   false,
	})
}

func runCapture(ctx context.Context, capture func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("room capture panicked: %v", r)
		}
	}()
	return capture(ctx)
}

// DetectSurface records that a placement surface was found.
func (a *Adapter) DetectSurface() {
	a.watchdog.Stop()
	a.store.Set(state.Update{state.SurfaceDetected: true})
}

// #endregion room-setup

// #region tick

// Tick is the per-frame driver. It polls the surface watchdog and completes
// timed behavior states, returning the actors that completed.
func (a *Adapter) Tick(now time.Time) []behavior.ActorID {
	a.watchdog.Tick(now)
	if a.ticker == nil {
		return nil
	}
	return a.ticker.Tick()
}

// #endregion tick
