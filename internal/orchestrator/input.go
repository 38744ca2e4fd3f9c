package orchestrator

import "github.com/jameskane05/nanauts-sub000/internal/state"

// Input panel ids.
const (
	PanelVoiceInput = "voice-input"
	PanelTextInput  = "text-input"
)

// InputMode shows the voice or text input panel once XR is running. The
// panel hides while paused and while an exclusive rule owns the view.
type InputMode struct {
	base
	host    PanelHost
	blocked func() bool
	shown   string
}

// NewInputMode builds the input-mode listener. blocked may be nil.
func NewInputMode(host PanelHost, blocked func() bool, opts ...Option) *InputMode {
	if blocked == nil {
		blocked = func() bool { return false }
	}
	return &InputMode{base: newBase(opts), host: host, blocked: blocked}
}

// OnStateChanged swaps the input panel when the desired one differs.
func (in *InputMode) OnStateChanged(next, _ state.Snapshot) {
	want := in.desired(next)
	if want == in.shown {
		return
	}
	if in.shown != "" {
		in.host.Hide(in.shown)
		in.rec.Record("input", in.shown, "hide", reasonFor(want))
	}
	in.shown = want
	if want != "" {
		in.host.Show(want)
		in.rec.Record("input", want, "show", reasonFor(want))
	}
}

func (in *InputMode) desired(s state.Snapshot) string {
	phase := s.Phase()
	if phase < state.XRActive || phase == state.XRPaused || in.blocked() {
		return ""
	}
	if mode, _ := s.Text(state.InputMode); mode == state.InputText {
		return PanelTextInput
	}
	return PanelVoiceInput
}

func reasonFor(want string) string {
	if want == "" {
		return "input unavailable"
	}
	return "input mode"
}

// Shown returns the visible input panel, empty when none.
func (in *InputMode) Shown() string { return in.shown }
