package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseOrder(t *testing.T) {
	order := []Phase{PlatformCheck, Unsupported, Loading, StartScreen, EnteringXR, XRActive, XRPaused, Playing, PortalPlacement}
	assert.Equal(t, order, Phases())
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1], order[i])
	}
}

func TestParsePhase(t *testing.T) {
	for _, p := range Phases() {
		got, err := ParsePhase(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParsePhase("xr_active")
	assert.Error(t, err)
}

func TestPhaseJSON(t *testing.T) {
	b, err := json.Marshal(map[string]Phase{"p": XRPaused})
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":"XR_PAUSED"}`, string(b))

	var out map[string]Phase
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, XRPaused, out["p"])

	_, err = json.Marshal(Phase(42))
	assert.Error(t, err)
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		field Field
		in    any
		want  any
		err   bool
	}{
		{CurrentState, float64(7), Playing, false},
		{CurrentState, "XR_ACTIVE", XRActive, false},
		{CurrentState, 5.5, nil, true},
		{CurrentState, 99, nil, true},
		{CurrentState, nil, nil, true},
		{StateBeforePause, nil, nil, false},
		{MusicVolume, 1, 1.0, false},
		{MusicVolume, float32(0.5), 0.5, false},
		{MusicVolume, "loud", nil, true},
		{InputMode, InputText, InputText, false},
		{Transcript, nil, nil, false},
		{IntroComplete, 1, nil, true},
		{World, struct{}{}, struct{}{}, false},
	}
	for _, tt := range tests {
		got, err := Coerce(tt.field, tt.in)
		if tt.err {
			assert.Error(t, err, "%s=%v", tt.field, tt.in)
			continue
		}
		require.NoError(t, err, "%s=%v", tt.field, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestSnapshotChanged(t *testing.T) {
	a := NewSnapshot(Update{CurrentState: XRActive, MusicVolume: 0.5, Transcript: nil})
	b := a.With(Update{MusicVolume: 0.5})
	c := a.With(Update{Transcript: "hello"})

	assert.False(t, b.Changed(a, MusicVolume, CurrentState, Transcript))
	assert.True(t, c.Changed(a, Transcript))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, []Field{Transcript}, c.Diff(a))

	d := NewSnapshot(Update{CurrentState: XRActive})
	assert.ElementsMatch(t, []Field{MusicVolume, Transcript}, d.Diff(a))
}
