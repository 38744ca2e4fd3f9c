package orchestrator

import "github.com/jameskane05/nanauts-sub000/internal/state"

// RingTone is the sound effect played for an incoming call.
const RingTone = "phone-ring"

// Ringer rings once per incoming call.
//
// It is the one listener that writes to the store as a direct result of a
// notification: after ringing it sets callHasRung, and nothing else. The
// nested Set re-notifies every listener, including this one, which then
// sees callHasRung and does nothing.
type Ringer struct {
	base
	store *state.Store
	sfx   SFXPlayer
}

// NewRinger builds the ring-once listener.
func NewRinger(store *state.Store, sfx SFXPlayer, opts ...Option) *Ringer {
	return &Ringer{base: newBase(opts), store: store, sfx: sfx}
}

// OnStateChanged rings when a call is pending and has not rung yet.
func (r *Ringer) OnStateChanged(next, _ state.Snapshot) {
	if !next.Bool(state.CallIncoming) || next.Bool(state.CallHasRung) || next.Bool(state.CallAnswered) {
		return
	}
	r.sfx.PlaySFX(RingTone)
	r.rec.Record("sfx", RingTone, "play", "call incoming")
	r.logger.Info("[CALL] ringing")
	r.store.Set(state.Update{state.CallHasRung: true})
}
