package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jameskane05/nanauts-sub000/internal/criteria"
	"github.com/jameskane05/nanauts-sub000/internal/state"
)

func snap(u state.Update) state.Snapshot {
	return state.NewSnapshot(state.Defaults()).With(u)
}

func TestEvaluateExclusiveRuleWins(t *testing.T) {
	table := MustTable(
		Rule{
			ID:        "A",
			Priority:  100,
			Exclusive: true,
			Criteria:  criteria.Criteria{"roomSetupRequired": criteria.Equals(true)},
		},
		Rule{
			ID:       "B",
			Priority: 50,
			Criteria: criteria.Criteria{"currentState": criteria.Gte(state.XRActive)},
		},
	)
	s := snap(state.Update{state.CurrentState: state.XRActive, state.RoomSetupRequired: true})

	got := table.Evaluate(s, nil)
	assert.Equal(t, "A", got.RuleID)
	assert.True(t, got.Exclusive)
	assert.True(t, got.Active())

	matching := table.Matching(s, nil)
	require.Len(t, matching, 2, "B still matches, the exclusive flag is what hides it")
	assert.Equal(t, "B", matching[1].ID)
}

func TestEvaluateNoMatchIsSentinel(t *testing.T) {
	table := MustTable(Rule{ID: "A", Priority: 1, Criteria: criteria.Criteria{"roomSetupRequired": criteria.Equals(true)}})

	got := table.Evaluate(snap(nil), nil)
	assert.Equal(t, None, got)
	assert.False(t, got.Active())
	assert.Equal(t, TargetHidden, got.Target)
	assert.Equal(t, "none", got.String())
}

func TestEvaluateTieBreakByTableOrder(t *testing.T) {
	both := criteria.Criteria{"currentState": criteria.Gte(state.XRActive)}
	table := MustTable(
		Rule{ID: "low", Priority: 1, Criteria: both},
		Rule{ID: "first", Priority: 10, Criteria: both},
		Rule{ID: "second", Priority: 10, Criteria: both},
	)

	for _, p := range []state.Phase{state.XRActive, state.XRPaused, state.Playing, state.PortalPlacement} {
		got := table.Evaluate(snap(state.Update{state.CurrentState: p}), nil)
		assert.Equal(t, "first", got.RuleID, p.String())
	}
}

func TestEvaluateExtraRulesAfterStaticOnTie(t *testing.T) {
	always := criteria.Criteria{}
	table := MustTable(Rule{ID: "static", Priority: 5, Criteria: always})
	extra := []Rule{
		{ID: "custom-1", Priority: 5, Criteria: always},
		{ID: "custom-2", Priority: 6, Criteria: always},
	}

	assert.Equal(t, "custom-2", table.Evaluate(snap(nil), extra).RuleID)
	assert.Equal(t, "static", table.Evaluate(snap(nil), extra[:1]).RuleID)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	table, err := PanelTable()
	require.NoError(t, err)
	extra := []Rule{{ID: "custom", Priority: 55, Criteria: criteria.Criteria{"minigameActive": criteria.Equals(true)}}}
	snapshots := []state.Snapshot{
		snap(nil),
		snap(state.Update{state.CurrentState: state.XRActive}),
		snap(state.Update{state.CurrentState: state.XRActive, state.RoomSetupRequired: true}),
		snap(state.Update{state.CurrentState: state.Playing, state.MinigameActive: true}),
		snap(state.Update{state.CurrentState: state.Playing, state.CallIncoming: true}),
	}

	for _, s := range snapshots {
		first := table.Evaluate(s, extra)
		second := table.Evaluate(s, extra)
		assert.Equal(t, first, second)
	}
	assert.Equal(t, "custom", extra[0].ID)
	assert.Equal(t, len(DefaultPanelRules()), table.Len())
}

func TestDefaultPanelRules(t *testing.T) {
	table, err := PanelTable()
	require.NoError(t, err)

	tests := []struct {
		name string
		u    state.Update
		want string
	}{
		{"start screen", state.Update{state.CurrentState: state.StartScreen}, TargetHidden},
		{"welcome", state.Update{state.CurrentState: state.XRActive}, PanelWelcome},
		{"setup required", state.Update{state.CurrentState: state.XRActive, state.RoomSetupRequired: true}, PanelRoomSetupRequired},
		{"setup progress", state.Update{state.CurrentState: state.XRActive, state.RoomSetupRequired: true, state.RoomSetupInProgress: true}, PanelRoomSetupProgress},
		{"setup failed outranks progress", state.Update{state.CurrentState: state.XRActive, state.RoomSetupInProgress: true, state.RoomSetupFailed: true}, PanelRoomSetupFailed},
		{"playing hud", state.Update{state.CurrentState: state.Playing}, PanelHUD},
		{"minigame", state.Update{state.CurrentState: state.Playing, state.MinigameActive: true}, PanelMinigameHUD},
		{"call outranks minigame", state.Update{state.CurrentState: state.Playing, state.MinigameActive: true, state.CallIncoming: true}, PanelCall},
		{"call answered", state.Update{state.CurrentState: state.Playing, state.CallIncoming: true, state.CallAnswered: true}, PanelHUD},
		{"portal", state.Update{state.CurrentState: state.PortalPlacement}, PanelPortalPlacement},
		{"portal placed", state.Update{state.CurrentState: state.PortalPlacement, state.PortalPlaced: true}, PanelHUD},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Evaluate(snap(tt.u), nil).Target)
		})
	}
}

func TestTableAddRemove(t *testing.T) {
	table := MustTable(Rule{ID: "a"}, Rule{ID: "b"}, Rule{ID: "c", Target: "panel-c"})

	err := table.Add(Rule{ID: "b"})
	assert.True(t, errors.Is(err, ErrDuplicateRule))
	assert.Error(t, table.Add(Rule{}))

	assert.True(t, table.Remove("b"))
	assert.False(t, table.Remove("b"))
	require.NoError(t, table.Add(Rule{ID: "b"}))

	ids := []string{}
	for _, r := range table.Rules() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "c", "b"}, ids)
	assert.Equal(t, []string{"a", "panel-c", "b"}, table.Targets())

	r, ok := table.Rule("c")
	require.True(t, ok)
	assert.Equal(t, "panel-c", r.Target)
}

func TestNewTableDuplicate(t *testing.T) {
	_, err := NewTable(Rule{ID: "a"}, Rule{ID: "a"})
	assert.ErrorIs(t, err, ErrDuplicateRule)
	assert.Panics(t, func() { MustTable(Rule{ID: "a"}, Rule{ID: "a"}) })
}

func TestDecode(t *testing.T) {
	src := []byte(`
rules:
  - id: tutorial
    priority: 40
    target: tutorial-panel
    criteria:
      currentState: {gte: XR_ACTIVE, lte: PLAYING}
      introComplete: false
  - id: loud
    priority: 5
    exclusive: true
    criteria:
      musicVolume: {gte: 1}
`)
	loaded, err := Decode(src)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "tutorial-panel", loaded[0].Target)
	assert.Equal(t, "loud", loaded[1].Target)
	assert.True(t, loaded[1].Exclusive)

	table := MustTable(loaded...)
	assert.Equal(t, "tutorial", table.Evaluate(snap(state.Update{state.CurrentState: state.Playing}), nil).RuleID)
	assert.False(t, table.Evaluate(snap(state.Update{state.CurrentState: state.PortalPlacement}), nil).Active())
	assert.Equal(t, "loud", table.Evaluate(snap(state.Update{state.CurrentState: state.PortalPlacement, state.MusicVolume: 1.0}), nil).RuleID)
}

func TestDecodeErrors(t *testing.T) {
	for name, src := range map[string]string{
		"missing id":   "rules:\n  - priority: 1\n",
		"duplicate":    "rules:\n  - id: a\n  - id: a\n",
		"bad phase":    "rules:\n  - id: a\n    criteria:\n      currentState: NOWHERE\n",
		"bad bool":     "rules:\n  - id: a\n    criteria:\n      introComplete: 3\n",
		"bad yaml":     "rules: [",
		"bad operator": "rules:\n  - id: a\n    criteria:\n      currentState: {above: 3}\n",
	} {
		_, err := Decode([]byte(src))
		assert.Error(t, err, name)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - id: a\n    priority: 3\n"), 0o644))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 3, loaded[0].Priority)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
