package debugpreset

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/jameskane05/nanauts-sub000/internal/state"
)

func quietLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestParsePhasePreset(t *testing.T) {
	o := Parse("?gameState=PLAYING", quietLogger(&bytes.Buffer{}))
	if !o.Active {
		t.Fatal("expected active overlay")
	}
	if o.Update[state.CurrentState] != state.Playing {
		t.Fatalf("expected PLAYING, got %v", o.Update[state.CurrentState])
	}
}

func TestParseNamedPreset(t *testing.T) {
	o := Parse("debug=1&gameState=skip-room-setup", quietLogger(&bytes.Buffer{}))
	if !o.Active || o.Name != "skip-room-setup" {
		t.Fatalf("unexpected overlay %+v", o)
	}
	if o.Update[state.RoomSetupRequired] != false {
		t.Fatal("expected roomSetupRequired=false")
	}
	if _, ok := o.Update[state.CurrentState]; ok {
		t.Fatal("skip-room-setup must not move the phase")
	}
}

func TestParseCaseInsensitive(t *testing.T) {
	o := Parse("gameState=xr_paused", quietLogger(&bytes.Buffer{}))
	if !o.Active || o.Update[state.CurrentState] != state.XRPaused {
		t.Fatalf("unexpected overlay %+v", o)
	}
}

func TestParseMissingParam(t *testing.T) {
	var buf bytes.Buffer
	o := Parse("", quietLogger(&buf))
	if o.Active || o.Update != nil {
		t.Fatalf("expected inactive overlay, got %+v", o)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no log output, got %q", buf.String())
	}
}

func TestParseUnknownPresetWarns(t *testing.T) {
	var buf bytes.Buffer
	o := Parse("gameState=MOON_BASE", quietLogger(&buf))
	if o.Active {
		t.Fatal("unknown preset must not be active")
	}
	if o.Update != nil {
		t.Fatal("unknown preset must not carry an update")
	}
	if !strings.Contains(buf.String(), "unknown debug preset") {
		t.Fatalf("expected warning, got %q", buf.String())
	}
}

func TestParseMalformedQueryWarns(t *testing.T) {
	var buf bytes.Buffer
	o := Parse("gameState=%zz", quietLogger(&buf))
	if o.Active {
		t.Fatal("malformed query must not be active")
	}
	if !strings.Contains(buf.String(), "malformed") {
		t.Fatalf("expected warning, got %q", buf.String())
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	u, ok := Lookup("playing")
	if !ok {
		t.Fatal("expected preset")
	}
	u[state.CurrentState] = state.Loading

	again, _ := Lookup("playing")
	if again[state.CurrentState] != state.Playing {
		t.Fatal("preset table was mutated through a lookup result")
	}
}

func TestEveryPhaseHasPreset(t *testing.T) {
	for _, p := range state.Phases() {
		if _, ok := Presets[p.String()]; !ok {
			t.Errorf("missing preset for %s", p)
		}
	}
	if len(Names()) != len(Presets) {
		t.Fatalf("Names() length mismatch")
	}
}

func TestOverlayAppliedByStore(t *testing.T) {
	o := Parse("gameState=skip-room-setup", quietLogger(&bytes.Buffer{}))
	s := state.New(state.WithDebugOverlay(o), state.WithLogger(quietLogger(&bytes.Buffer{})))
	s.Set(state.Update{state.RoomSetupRequired: true})

	s.Set(state.Update{state.CurrentState: state.XRActive})
	if s.Get().Bool(state.RoomSetupRequired) {
		t.Fatal("expected overlay to clear roomSetupRequired")
	}
}
