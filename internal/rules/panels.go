package rules

import (
	"github.com/jameskane05/nanauts-sub000/internal/criteria"
	"github.com/jameskane05/nanauts-sub000/internal/state"
)

// #region panel-ids

// Built-in spatial panel targets.
const (
	PanelRoomSetupFailed   = "room-setup-failed"
	PanelRoomSetupRequired = "room-setup-required"
	PanelRoomSetupProgress = "room-setup-progress"
	PanelCall              = "call"
	PanelPortalPlacement   = "portal-placement"
	PanelMinigameHUD       = "minigame-hud"
	PanelWelcome           = "welcome"
	PanelHUD               = "hud"
)

// #endregion panel-ids

// #region default-panels

// DefaultPanelRules returns the built-in spatial UI rules. Failure rules
// outrank the in-progress rule so a failed setup never leaves the user
// looking at a spinner.
func DefaultPanelRules() []Rule {
	inXR := criteria.Gte(state.XRActive)
	return []Rule{
		{
			ID:        PanelRoomSetupFailed,
			Priority:  110,
			Exclusive: true,
			Criteria: criteria.Criteria{
				string(state.RoomSetupFailed): criteria.Equals(true),
				string(state.CurrentState):    inXR,
			},
		},
		{
			ID:        PanelRoomSetupRequired,
			Priority:  100,
			Exclusive: true,
			Criteria: criteria.Criteria{
				string(state.RoomSetupRequired):   criteria.Equals(true),
				string(state.RoomSetupInProgress): criteria.Equals(false),
				string(state.CurrentState):        inXR,
			},
		},
		{
			ID:        PanelRoomSetupProgress,
			Priority:  90,
			Exclusive: true,
			Criteria: criteria.Criteria{
				string(state.RoomSetupInProgress): criteria.Equals(true),
				string(state.CurrentState):        inXR,
			},
		},
		{
			ID:       PanelCall,
			Priority: 80,
			Criteria: criteria.Criteria{
				string(state.CallIncoming): criteria.Equals(true),
				string(state.CallAnswered): criteria.Equals(false),
				string(state.CurrentState): criteria.Gte(state.Playing),
			},
		},
		{
			ID:       PanelPortalPlacement,
			Priority: 70,
			Criteria: criteria.Criteria{
				string(state.CurrentState): criteria.Equals(state.PortalPlacement),
				string(state.PortalPlaced): criteria.Equals(false),
			},
		},
		{
			ID:       PanelMinigameHUD,
			Priority: 60,
			Criteria: criteria.Criteria{
				string(state.MinigameActive): criteria.Equals(true),
				string(state.CurrentState):   criteria.Gte(state.Playing),
			},
		},
		{
			ID:       PanelWelcome,
			Priority: 50,
			Criteria: criteria.Criteria{
				string(state.CurrentState):  criteria.Equals(state.XRActive),
				string(state.IntroComplete): criteria.Equals(false),
			},
		},
		{
			ID:       PanelHUD,
			Priority: 10,
			Criteria: criteria.Criteria{
				string(state.CurrentState): criteria.Between(state.Playing, state.PortalPlacement),
			},
		},
	}
}

// #endregion default-panels
