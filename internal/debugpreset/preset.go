// Package debugpreset turns a debug query string (?gameState=PLAYING) into
// a one-time overlay for the state store.
package debugpreset

import (
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/jameskane05/nanauts-sub000/internal/state"
)

// Param is the query parameter carrying the preset name.
const Param = "gameState"

// #region presets

var named = map[string]state.Update{
	"skip-room-setup": {
		state.RoomSetupRequired: false,
		state.SurfaceDetected:   true,
	},
	"playing": {
		state.CurrentState:      state.Playing,
		state.IntroComplete:     true,
		state.RoomSetupRequired: false,
		state.SurfaceDetected:   true,
		state.RobotsActive:      true,
	},
	"portal": {
		state.CurrentState:      state.PortalPlacement,
		state.IntroComplete:     true,
		state.RoomSetupRequired: false,
		state.SurfaceDetected:   true,
		state.RobotsActive:      true,
	},
	"call": {
		state.CurrentState:      state.Playing,
		state.IntroComplete:     true,
		state.RoomSetupRequired: false,
		state.RobotsActive:      true,
		state.CallIncoming:      true,
	},
	"minigame": {
		state.CurrentState:      state.Playing,
		state.IntroComplete:     true,
		state.RoomSetupRequired: false,
		state.RobotsActive:      true,
		state.MinigameActive:    true,
	},
}

// Presets is the lookup table: one preset per phase name plus the named
// shortcuts above. Built once at startup.
var Presets = build()

func build() map[string]state.Update {
	out := make(map[string]state.Update, len(named)+len(state.Phases()))
	for _, p := range state.Phases() {
		out[p.String()] = state.Update{state.CurrentState: p}
	}
	for name, u := range named {
		out[name] = u
	}
	return out
}

// Lookup returns a copy of the preset called name. Names match exactly
// first, then case-insensitively.
func Lookup(name string) (state.Update, bool) {
	if u, ok := Presets[name]; ok {
		return u.Clone(), true
	}
	for k, u := range Presets {
		if strings.EqualFold(k, name) {
			return u.Clone(), true
		}
	}
	return nil, false
}

// Names returns every preset name, sorted.
func Names() []string {
	out := make([]string, 0, len(Presets))
	for k := range Presets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// #endregion presets

// #region parse

// Parse reads the gameState parameter from rawQuery. A missing parameter
// yields an inactive overlay. A malformed query or unknown preset logs a
// warning and also yields an inactive overlay; startup continues with the
// default phase either way.
func Parse(rawQuery string, logger *slog.Logger) state.Overlay {
	if logger == nil {
		logger = slog.Default()
	}
	values, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		logger.Warn("[DEBUG] malformed debug query, ignoring", "query", rawQuery, "error", err)
		return state.Overlay{}
	}
	name := strings.TrimSpace(values.Get(Param))
	if name == "" {
		return state.Overlay{}
	}
	u, ok := Lookup(name)
	if !ok {
		logger.Warn("[DEBUG] unknown debug preset, ignoring", "preset", name)
		return state.Overlay{Name: name}
	}
	logger.Info("[DEBUG] debug preset requested", "preset", name)
	return state.Overlay{Name: name, Update: u, Active: true}
}

// #endregion parse
