package behavior

import (
	"fmt"
	"time"
)

// #region state

// State is a robot behavior state.
type State int

const (
	Idle State = iota
	Wandering
	Jumping
	Scanning
	Chatting
	Reacting
	Approaching
	MovingToGoal
	Stationary
	AttendingPlayer
	FollowingPlayer
	FlyingFollow
	Panicking
)

// DefaultState is where an actor lands when an auto-completing state ends
// with nothing to return to.
const DefaultState = Idle

var stateNames = [...]string{
	Idle:            "idle",
	Wandering:       "wandering",
	Jumping:         "jumping",
	Scanning:        "scanning",
	Chatting:        "chatting",
	Reacting:        "reacting",
	Approaching:     "approaching",
	MovingToGoal:    "moving-to-goal",
	Stationary:      "stationary",
	AttendingPlayer: "attending-player",
	FollowingPlayer: "following-player",
	FlyingFollow:    "flying-follow",
	Panicking:       "panicking",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState resolves a state by name, e.g. "moving-to-goal".
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown behavior state %q", name)
}

// States returns every state in declaration order.
func States() []State {
	out := make([]State, len(stateNames))
	for i := range stateNames {
		out[i] = State(i)
	}
	return out
}

// #endregion state

// #region managers

// Manager tags an external behavior module that runs while a state is
// current.
type Manager string

const (
	ManagerNavigation Manager = "navigation"
	ManagerWander     Manager = "wander"
	ManagerJump       Manager = "jump"
	ManagerScan       Manager = "scan"
	ManagerChat       Manager = "chat"
	ManagerReaction   Manager = "reaction"
	ManagerAttention  Manager = "attention"
	ManagerGoal       Manager = "goal"
	ManagerFollow     Manager = "follow"
	ManagerFlight     Manager = "flight"
	ManagerPanic      Manager = "panic"
)

// #endregion managers

// #region config

// StateConfig is the static description of a state.
//
// Duration applies to auto-completing states only: the ticker completes the
// state once it has elapsed. Zero means the state waits for an explicit
// trigger (OnStateComplete).
type StateConfig struct {
	Priority       int
	AutoCompletes  bool
	Interruptible  bool
	SelectsTargets bool
	Managers       []Manager
	Duration       time.Duration
}

// Configs is the static state table.
var Configs = map[State]StateConfig{
	Idle: {
		Priority: 0, Interruptible: true, SelectsTargets: true,
		Managers: []Manager{ManagerNavigation, ManagerAttention},
	},
	Wandering: {
		Priority: 1, Interruptible: true, SelectsTargets: true,
		Managers: []Manager{ManagerNavigation, ManagerWander, ManagerAttention},
	},
	Stationary: {
		Priority: 1, Interruptible: true,
		Managers: []Manager{ManagerAttention},
	},
	Approaching: {
		Priority: 2, Interruptible: true,
		Managers: []Manager{ManagerNavigation, ManagerAttention},
	},
	MovingToGoal: {
		Priority: 2, Interruptible: true, SelectsTargets: true,
		Managers: []Manager{ManagerNavigation, ManagerGoal},
	},
	AttendingPlayer: {
		Priority: 3, Interruptible: true,
		Managers: []Manager{ManagerAttention},
	},
	FollowingPlayer: {
		Priority: 3, Interruptible: true,
		Managers: []Manager{ManagerNavigation, ManagerFollow, ManagerAttention},
	},
	FlyingFollow: {
		Priority: 4, Interruptible: true,
		Managers: []Manager{ManagerFlight, ManagerFollow},
	},
	Jumping: {
		Priority: 3, AutoCompletes: true,
		Managers: []Manager{ManagerJump},
		Duration: 1200 * time.Millisecond,
	},
	Scanning: {
		Priority: 4, AutoCompletes: true,
		Managers: []Manager{ManagerScan},
		Duration: 3 * time.Second,
	},
	Chatting: {
		Priority: 5, AutoCompletes: true,
		Managers: []Manager{ManagerChat, ManagerAttention},
	},
	Reacting: {
		Priority: 6, AutoCompletes: true,
		Managers: []Manager{ManagerReaction},
		Duration: 2 * time.Second,
	},
	Panicking: {
		Priority: 8, AutoCompletes: true,
		Managers: []Manager{ManagerPanic, ManagerReaction},
		Duration: 4 * time.Second,
	},
}

// Config returns the static config of s.
func Config(s State) StateConfig {
	return Configs[s]
}

// movementManagers are the managers that physically move the actor.
var movementManagers = []Manager{ManagerNavigation, ManagerFlight}

// panicExempt actors keep moving and choosing targets while panicking.
// They are the two robots that flee instead of freezing.
var panicExempt = map[ActorID]bool{4: true, 5: true}

// #endregion config
