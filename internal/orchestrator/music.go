package orchestrator

import (
	"github.com/jameskane05/nanauts-sub000/internal/criteria"
	"github.com/jameskane05/nanauts-sub000/internal/rules"
	"github.com/jameskane05/nanauts-sub000/internal/state"
)

// #region tracks

// Track is a music cue guarded by criteria.
type Track struct {
	ID       string
	Criteria criteria.Criteria
	Priority int
}

// DefaultTracks returns the built-in music cues.
func DefaultTracks() []Track {
	return []Track{
		{
			ID:       "menu-theme",
			Priority: 10,
			Criteria: criteria.Criteria{
				string(state.CurrentState): criteria.Between(state.Loading, state.EnteringXR),
			},
		},
		{
			ID:       "ambient-room",
			Priority: 20,
			Criteria: criteria.Criteria{
				string(state.CurrentState): criteria.Equals(state.XRActive),
			},
		},
		{
			ID:       "robots-theme",
			Priority: 30,
			Criteria: criteria.Criteria{
				string(state.CurrentState): criteria.Gte(state.Playing),
				string(state.RobotsActive): criteria.Equals(true),
			},
		},
		{
			ID:       "minigame-theme",
			Priority: 40,
			Criteria: criteria.Criteria{
				string(state.CurrentState):   criteria.Gte(state.Playing),
				string(state.MinigameActive): criteria.Equals(true),
			},
		},
	}
}

// #endregion tracks

// #region music

// Music keeps at most one track playing. Entering XR_PAUSED pauses the
// current track in place. Returning to XR resumes that same track before any
// re-selection happens; leaving XR from the pause stops it instead.
type Music struct {
	base
	table   *rules.Table
	player  AudioPlayer
	current string
	paused  bool
	synced  bool
}

// NewMusic builds the music listener. Track ids must be unique.
func NewMusic(tracks []Track, player AudioPlayer, opts ...Option) *Music {
	rs := make([]rules.Rule, 0, len(tracks))
	for _, t := range tracks {
		rs = append(rs, rules.Rule{ID: t.ID, Criteria: t.Criteria, Priority: t.Priority})
	}
	return &Music{
		base:   newBase(opts),
		table:  rules.MustTable(rs...),
		player: player,
	}
}

// OnStateChanged applies volume changes, pause/resume, and track selection.
func (m *Music) OnStateChanged(next, prev state.Snapshot) {
	first := !m.synced
	m.synced = true
	if !first && next.Equal(prev) {
		return
	}

	if first || next.Changed(prev, state.MusicVolume) {
		v := next.Float(state.MusicVolume)
		m.player.SetVolume(v)
		m.logger.Debug("[MUSIC] volume", "value", v)
	}

	if next.Phase() == state.XRPaused {
		if !m.paused && m.current != "" {
			m.paused = true
			m.player.Pause(m.current)
			m.rec.Record("music", m.current, "pause", "xr paused")
		}
		return
	}
	left := false
	if m.paused {
		m.paused = false
		if next.Phase() >= state.XRActive {
			m.player.Resume(m.current)
			m.rec.Record("music", m.current, "resume", "xr resumed")
		} else {
			m.player.Stop(m.current)
			m.rec.Record("music", m.current, "stop", "left xr")
			m.current = ""
			left = true
		}
	}

	if !first && !left && !touches(next, prev, m.table.Rules()) {
		return
	}
	res := m.table.Evaluate(next, nil)
	target := ""
	if res.Active() {
		target = res.Target
	}
	if target == m.current {
		return
	}
	if m.current != "" {
		m.player.Stop(m.current)
		m.rec.Record("music", m.current, "stop", "superseded")
	}
	m.current = target
	if target != "" {
		m.player.Play(target)
		m.rec.Record("music", target, "play", res.RuleID)
	}
	m.logger.Info("[MUSIC] track", "id", target)
}

// Current returns the selected track id, empty when silent.
func (m *Music) Current() string { return m.current }

// Paused reports whether the current track is held by an XR pause.
func (m *Music) Paused() bool { return m.paused }

// #endregion music
