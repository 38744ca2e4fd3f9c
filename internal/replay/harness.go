// Package replay runs recorded store updates through a fresh store and the
// panel listener, and checks which panel ends up visible after each one.
package replay

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/jameskane05/nanauts-sub000/internal/debugpreset"
	"github.com/jameskane05/nanauts-sub000/internal/orchestrator"
	"github.com/jameskane05/nanauts-sub000/internal/rules"
	"github.com/jameskane05/nanauts-sub000/internal/state"
)

// #region types

// StepResult captures the outcome of replaying one step.
type StepResult struct {
	StepID string
	Phase  state.Phase
	RuleID string
	Panel  string // rules.TargetHidden when nothing matched
	Shown  []string
	Hidden []string
}

// Mismatch is a step whose outcome differs from the fixture's expectation.
type Mismatch struct {
	StepID string
	Field  string // "panel" | "phase"
	Want   string
	Got    string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("step %s: expected %s=%s, got %s", m.StepID, m.Field, m.Want, m.Got)
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalSteps    int
	PanelChanges  int
	Mismatches    []Mismatch
	FinalSnapshot state.Snapshot
}

// #endregion types

// #region panel-recorder

type panelRecorder struct {
	shown  []string
	hidden []string
}

func (r *panelRecorder) Show(id string) { r.shown = append(r.shown, id) }
func (r *panelRecorder) Hide(id string) { r.hidden = append(r.hidden, id) }

func (r *panelRecorder) drain() (shown, hidden []string) {
	shown, hidden = r.shown, r.hidden
	r.shown, r.hidden = nil, nil
	return shown, hidden
}

// #endregion panel-recorder

// #region replay

// Replay feeds the fixture's steps, in order, into a fresh store wired to a
// panel listener over table. A nil table uses the built-in panel rules.
// Operates entirely in memory.
func Replay(f *Fixture, table *rules.Table) ([]StepResult, *state.Store, error) {
	if table == nil {
		table = rules.MustTable(rules.DefaultPanelRules()...)
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	start, err := f.Start.ToUpdate()
	if err != nil {
		return nil, nil, fmt.Errorf("start state: %w", err)
	}
	opts := []state.Option{state.WithLogger(quiet), state.WithInitial(start)}
	if f.DebugQuery != "" {
		opts = append(opts, state.WithDebugOverlay(debugpreset.Parse(f.DebugQuery, quiet)))
	}
	store := state.New(opts...)

	host := &panelRecorder{}
	panels := orchestrator.NewPanels(table, host, orchestrator.WithLogger(quiet))
	store.Subscribe(state.EventStateChanged, panels.OnStateChanged)
	panels.OnStateChanged(store.Get(), state.Snapshot{})
	host.drain()

	results := make([]StepResult, 0, len(f.Steps))
	for i, step := range f.Steps {
		u, err := step.Update.ToUpdate()
		if err != nil {
			return results, store, fmt.Errorf("step %d (%s): %w", i, step.StepID, err)
		}
		store.Set(u)

		active := panels.Active()
		shown, hidden := host.drain()
		results = append(results, StepResult{
			StepID: step.StepID,
			Phase:  store.Get().Phase(),
			RuleID: active.RuleID,
			Panel:  active.Target,
			Shown:  shown,
			Hidden: hidden,
		})
	}
	return results, store, nil
}

// Check compares results against the fixture's expectations.
func Check(f *Fixture, results []StepResult) []Mismatch {
	var out []Mismatch
	for i, step := range f.Steps {
		if i >= len(results) {
			out = append(out, Mismatch{StepID: step.StepID, Field: "step", Want: "run", Got: "missing"})
			continue
		}
		got := results[i]
		if step.ExpectedPanel != "" && step.ExpectedPanel != got.Panel {
			out = append(out, Mismatch{StepID: step.StepID, Field: "panel", Want: step.ExpectedPanel, Got: got.Panel})
		}
		if step.ExpectedPhase != "" && step.ExpectedPhase != got.Phase.String() {
			out = append(out, Mismatch{StepID: step.StepID, Field: "phase", Want: step.ExpectedPhase, Got: got.Phase.String()})
		}
	}
	return out
}

// Run replays f and summarizes the outcome.
func Run(f *Fixture, table *rules.Table) (ReplaySummary, []StepResult, error) {
	results, store, err := Replay(f, table)
	if err != nil {
		return ReplaySummary{}, results, err
	}
	summary := ReplaySummary{
		TotalSteps:    len(results),
		Mismatches:    Check(f, results),
		FinalSnapshot: store.Get(),
	}
	for _, r := range results {
		if len(r.Shown) > 0 || len(r.Hidden) > 0 {
			summary.PanelChanges++
		}
	}
	return summary, results, nil
}

// #endregion replay
