package state

import "fmt"

// #region phase

// Phase is the ordered top-level session lifecycle stage. Rules compare
// phases with gte/lte, so the numeric order below is part of the contract.
type Phase int

const (
	PlatformCheck Phase = iota
	Unsupported
	Loading
	StartScreen
	EnteringXR
	XRActive
	XRPaused
	Playing
	PortalPlacement
)

var phaseNames = [...]string{
	PlatformCheck:   "PLATFORM_CHECK",
	Unsupported:     "UNSUPPORTED",
	Loading:         "LOADING",
	StartScreen:     "START_SCREEN",
	EnteringXR:      "ENTERING_XR",
	XRActive:        "XR_ACTIVE",
	XRPaused:        "XR_PAUSED",
	Playing:         "PLAYING",
	PortalPlacement: "PORTAL_PLACEMENT",
}

// Phases returns every phase in order.
func Phases() []Phase {
	out := make([]Phase, len(phaseNames))
	for i := range phaseNames {
		out[i] = Phase(i)
	}
	return out
}

func (p Phase) String() string {
	if p.Valid() {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Valid reports whether p is one of the declared phases.
func (p Phase) Valid() bool {
	return p >= 0 && int(p) < len(phaseNames)
}

// ParsePhase resolves a phase by its name, e.g. "XR_ACTIVE".
func ParsePhase(name string) (Phase, error) {
	for i, n := range phaseNames {
		if n == name {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", name)
}

// MarshalText encodes the phase by name so journals stay readable.
func (p Phase) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid phase %d", int(p))
	}
	return []byte(phaseNames[p]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// #endregion phase
