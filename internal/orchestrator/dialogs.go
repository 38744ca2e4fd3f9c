package orchestrator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jameskane05/nanauts-sub000/internal/criteria"
	"github.com/jameskane05/nanauts-sub000/internal/state"
)

// ErrNotPlaying is returned by Complete for a dialog that is not the one
// currently playing.
var ErrNotPlaying = errors.New("dialog not playing")

// #region dialogs-content

// Dialog is a voiced line that plays automatically once its criteria hold.
// A Once dialog plays at most once per session; any other dialog replays
// each time its criteria go from false to true. OnComplete is merged into
// the store when the line finishes.
type Dialog struct {
	ID         string
	Criteria   criteria.Criteria
	Priority   int
	Once       bool
	OnComplete state.Update
}

// DefaultDialogs returns the built-in dialog cues.
func DefaultDialogs() []Dialog {
	return []Dialog{
		{
			ID:       "room-setup-help",
			Priority: 90,
			Criteria: criteria.Criteria{
				string(state.RoomSetupFailed): criteria.Equals(true),
				string(state.CurrentState):    criteria.Gte(state.XRActive),
			},
		},
		{
			ID:       "intro-greeting",
			Priority: 50,
			Once:     true,
			Criteria: criteria.Criteria{
				string(state.CurrentState):      criteria.Equals(state.XRActive),
				string(state.IntroComplete):     criteria.Equals(false),
				string(state.RoomSetupRequired): criteria.Equals(false),
			},
			OnComplete: state.Update{
				state.IntroComplete: true,
				state.CurrentState:  state.Playing,
				state.RobotsActive:  true,
			},
		},
		{
			ID:       "call-answer",
			Priority: 70,
			Once:     true,
			Criteria: criteria.Criteria{
				string(state.CallAnswered): criteria.Equals(true),
			},
			OnComplete: state.Update{
				state.CallIncoming:    false,
				state.CurrentState:    state.PortalPlacement,
				state.PortalPlaced:    false,
				state.SurfaceDetected: false,
			},
		},
		{
			ID:       "portal-hint",
			Priority: 40,
			Once:     true,
			Criteria: criteria.Criteria{
				string(state.CurrentState): criteria.Equals(state.PortalPlacement),
				string(state.PortalPlaced): criteria.Equals(false),
			},
		},
		{
			ID:       "minigame-win",
			Priority: 60,
			Criteria: criteria.Criteria{
				string(state.MinigameActive): criteria.Equals(false),
				string(state.MinigameScore):  criteria.Gte(10),
			},
		},
	}
}

// #endregion dialogs-content

// #region dialogs

// Dialogs auto-plays the highest-priority eligible dialog while nothing
// else is playing. Its only write path into the store is Complete.
type Dialogs struct {
	base
	store   *state.Store
	player  DialogPlayer
	dialogs []Dialog
	fields  []state.Field
	played  map[string]bool
	armed   map[string]bool
	playing string
	paused  bool
	pending bool
	synced  bool
}

// NewDialogs builds the dialog listener. Dialogs are ranked by priority,
// ties keeping the given order.
func NewDialogs(store *state.Store, dialogs []Dialog, player DialogPlayer, opts ...Option) *Dialogs {
	ordered := append([]Dialog(nil), dialogs...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority > ordered[j].Priority })
	d := &Dialogs{
		base:    newBase(opts),
		store:   store,
		player:  player,
		dialogs: ordered,
		played:  map[string]bool{},
		armed:   map[string]bool{},
	}
	for _, dl := range ordered {
		d.armed[dl.ID] = true
		d.fields = append(d.fields, criteriaFields(dl.Criteria)...)
	}
	return d
}

// OnStateChanged handles pause, stop on session exit, and auto-play.
// Nothing plays outside XR.
func (d *Dialogs) OnStateChanged(next, prev state.Snapshot) {
	first := !d.synced
	d.synced = true
	if !first && !d.pending && next.Equal(prev) {
		return
	}

	phase := next.Phase()
	switch {
	case phase == state.XRPaused:
		if d.playing != "" && !d.paused {
			d.paused = true
			d.player.Pause(d.playing)
			d.rec.Record("dialog", d.playing, "pause", "xr paused")
		}
		return
	case phase < state.XRActive:
		if d.playing != "" {
			d.player.Stop(d.playing)
			d.rec.Record("dialog", d.playing, "stop", "left xr")
			d.armed[d.playing] = true
			d.playing = ""
		}
		d.paused = false
		d.pending = false
		d.rearm(next)
		return
	case d.paused:
		d.paused = false
		d.player.Resume(d.playing)
		d.rec.Record("dialog", d.playing, "resume", "xr resumed")
	}

	if !first && !d.pending && !next.Changed(prev, d.fields...) {
		return
	}
	d.pending = false
	d.rearm(next)
	if d.playing != "" {
		return
	}
	for _, dl := range d.dialogs {
		if !d.eligible(dl) || !criteria.Match(next, dl.Criteria) {
			continue
		}
		d.playing = dl.ID
		d.armed[dl.ID] = false
		d.player.Play(dl.ID)
		d.rec.Record("dialog", dl.ID, "play", fmt.Sprintf("priority %d", dl.Priority))
		d.logger.Info("[DIALOG] playing", "id", dl.ID)
		return
	}
}

func (d *Dialogs) eligible(dl Dialog) bool {
	if dl.Once && d.played[dl.ID] {
		return false
	}
	return d.armed[dl.ID]
}

// rearm re-enables repeatable dialogs whose criteria no longer hold.
func (d *Dialogs) rearm(s state.Snapshot) {
	for _, dl := range d.dialogs {
		if dl.Once || d.armed[dl.ID] || dl.ID == d.playing {
			continue
		}
		if !criteria.Match(s, dl.Criteria) {
			d.armed[dl.ID] = true
		}
	}
}

// Complete marks the playing dialog finished and merges its OnComplete
// update together with lastDialogCompleted. The next eligible dialog, if
// any, starts during that same Set.
func (d *Dialogs) Complete(id string) error {
	if id == "" || id != d.playing {
		return fmt.Errorf("%w: %q", ErrNotPlaying, id)
	}
	var dl Dialog
	for _, c := range d.dialogs {
		if c.ID == id {
			dl = c
			break
		}
	}
	d.playing = ""
	d.paused = false
	d.played[id] = true
	d.pending = true
	d.rec.Record("dialog", id, "complete", "")
	d.logger.Info("[DIALOG] completed", "id", id)

	u := dl.OnComplete.Clone()
	u[state.LastDialogCompleted] = id
	d.store.Set(u)
	return nil
}

// Stop halts the playing dialog without completing it. It stays eligible
// to play again.
func (d *Dialogs) Stop() {
	if d.playing == "" {
		return
	}
	d.player.Stop(d.playing)
	d.rec.Record("dialog", d.playing, "stop", "requested")
	d.armed[d.playing] = true
	d.playing = ""
	d.paused = false
}

// Playing returns the id of the playing dialog, empty when idle.
func (d *Dialogs) Playing() string { return d.playing }

// Played reports whether id has completed at least once.
func (d *Dialogs) Played(id string) bool { return d.played[id] }

// #endregion dialogs
