package state

import (
	"fmt"
	"math"
)

// #region fields

// Field names a value in the session snapshot.
type Field string

const (
	CurrentState        Field = "currentState"
	StateBeforePause    Field = "stateBeforePause"
	XRPauseReason       Field = "xrPauseReason"
	World               Field = "world"
	MusicVolume         Field = "musicVolume"
	SFXVolume           Field = "sfxVolume"
	DialogVolume        Field = "dialogVolume"
	RoomSetupRequired   Field = "roomSetupRequired"
	RoomSetupInProgress Field = "roomSetupInProgress"
	RoomSetupFailed     Field = "roomSetupFailed"
	SurfaceDetected     Field = "surfaceDetected"
	PortalPlaced        Field = "portalPlaced"
	InputMode           Field = "inputMode"
	IsListening         Field = "isListening"
	Transcript          Field = "transcript"
	CallIncoming        Field = "callIncoming"
	CallHasRung         Field = "callHasRung"
	CallAnswered        Field = "callAnswered"
	IntroComplete       Field = "introComplete"
	RobotsActive        Field = "robotsActive"
	MinigameActive      Field = "minigameActive"
	MinigameScore       Field = "minigameScore"
	LastDialogCompleted Field = "lastDialogCompleted"
)

// Input modes carried by the InputMode field.
const (
	InputVoice = "voice"
	InputText  = "text"
)

// #endregion fields

// #region schema

// Kind is the declared type of a field.
type Kind int

const (
	KindAny Kind = iota
	KindPhase
	KindBool
	KindFloat
	KindString
	KindHandle
)

// FieldInfo describes one field: its kind and whether nil is a legal value.
type FieldInfo struct {
	Kind     Kind
	Nullable bool
}

// Schema maps every known field to its FieldInfo. Fields outside the schema are
// stored as-is.
var Schema = map[Field]FieldInfo{
	CurrentState:        {Kind: KindPhase},
	StateBeforePause:    {Kind: KindPhase, Nullable: true},
	XRPauseReason:       {Kind: KindString, Nullable: true},
	World:               {Kind: KindHandle, Nullable: true},
	MusicVolume:         {Kind: KindFloat},
	SFXVolume:           {Kind: KindFloat},
	DialogVolume:        {Kind: KindFloat},
	RoomSetupRequired:   {Kind: KindBool},
	RoomSetupInProgress: {Kind: KindBool},
	RoomSetupFailed:     {Kind: KindBool},
	SurfaceDetected:     {Kind: KindBool},
	PortalPlaced:        {Kind: KindBool},
	InputMode:           {Kind: KindString},
	IsListening:         {Kind: KindBool},
	Transcript:          {Kind: KindString, Nullable: true},
	CallIncoming:        {Kind: KindBool},
	CallHasRung:         {Kind: KindBool},
	CallAnswered:        {Kind: KindBool},
	IntroComplete:       {Kind: KindBool},
	RobotsActive:        {Kind: KindBool},
	MinigameActive:      {Kind: KindBool},
	MinigameScore:       {Kind: KindFloat},
	LastDialogCompleted: {Kind: KindString, Nullable: true},
}

// Defaults returns the snapshot contents at process start.
func Defaults() Update {
	return Update{
		CurrentState:        PlatformCheck,
		StateBeforePause:    nil,
		XRPauseReason:       nil,
		World:               nil,
		MusicVolume:         0.6,
		SFXVolume:           0.8,
		DialogVolume:        1.0,
		RoomSetupRequired:   false,
		RoomSetupInProgress: false,
		RoomSetupFailed:     false,
		SurfaceDetected:     false,
		PortalPlaced:        false,
		InputMode:           InputVoice,
		IsListening:         false,
		Transcript:          nil,
		CallIncoming:        false,
		CallHasRung:         false,
		CallAnswered:        false,
		IntroComplete:       false,
		RobotsActive:        false,
		MinigameActive:      false,
		MinigameScore:       0.0,
		LastDialogCompleted: nil,
	}
}

// Coerce converts v into the declared kind of f. JSON numbers, phase names
// and Go integer literals all land on the same typed value, so snapshots
// built from a journal compare equal to the live ones.
func Coerce(f Field, v any) (any, error) {
	info, ok := Schema[f]
	if !ok {
		return v, nil
	}
	if v == nil {
		if info.Nullable {
			return nil, nil
		}
		return nil, fmt.Errorf("field %s is not nullable", f)
	}
	switch info.Kind {
	case KindPhase:
		return coercePhase(v)
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("field %s: want bool, got %T", f, v)
		}
		return b, nil
	case KindFloat:
		x, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("field %s: want number, got %T", f, v)
		}
		return x, nil
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("field %s: want string, got %T", f, v)
		}
		return s, nil
	default:
		return v, nil
	}
}

func coercePhase(v any) (Phase, error) {
	switch x := v.(type) {
	case Phase:
		if !x.Valid() {
			return 0, fmt.Errorf("invalid phase %d", int(x))
		}
		return x, nil
	case string:
		return ParsePhase(x)
	}
	f, ok := asFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("want phase, got %T(%v)", v, v)
	}
	p := Phase(int(f))
	if !p.Valid() {
		return 0, fmt.Errorf("invalid phase %d", int(f))
	}
	return p, nil
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case Phase:
		return float64(x), true
	default:
		return 0, false
	}
}

// #endregion schema
