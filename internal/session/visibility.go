package session

import "fmt"

// Visibility is the XR session visibility reported by the host.
type Visibility int

const (
	NonImmersive Visibility = iota
	Visible
	Hidden
	VisibleBlurred
)

var visibilityNames = [...]string{
	NonImmersive:   "non-immersive",
	Visible:        "visible",
	Hidden:         "hidden",
	VisibleBlurred: "visible-blurred",
}

func (v Visibility) String() string {
	if v >= 0 && int(v) < len(visibilityNames) {
		return visibilityNames[v]
	}
	return fmt.Sprintf("Visibility(%d)", int(v))
}

// ParseVisibility resolves a visibility by name, e.g. "visible-blurred".
func ParseVisibility(name string) (Visibility, error) {
	for i, n := range visibilityNames {
		if n == name {
			return Visibility(i), nil
		}
	}
	return 0, fmt.Errorf("unknown visibility %q", name)
}
