package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jameskane05/nanauts-sub000/internal/journal"
	"github.com/jameskane05/nanauts-sub000/internal/rules"
	"github.com/jameskane05/nanauts-sub000/internal/state"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string        `json:"description"`
	DebugQuery  string        `json:"debug_query,omitempty"`
	Start       FixtureUpdate `json:"start"`
	Steps       []FixtureStep `json:"steps"`
}

// FixtureUpdate is a JSON-serializable partial snapshot. Phases are
// written by name.
type FixtureUpdate map[string]any

// FixtureStep is one Set call and what the panel listener should show
// after it. An empty expectation is not checked; "hidden" expects no panel.
type FixtureStep struct {
	StepID        string        `json:"step_id"`
	Update        FixtureUpdate `json:"update"`
	ExpectedPanel string        `json:"expected_panel,omitempty"`
	ExpectedPhase string        `json:"expected_phase,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToUpdate converts a FixtureUpdate to a store update, coercing each value
// to its field's kind.
func (fu FixtureUpdate) ToUpdate() (state.Update, error) {
	u := make(state.Update, len(fu))
	for k, v := range fu {
		cv, err := state.Coerce(state.Field(k), v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		u[state.Field(k)] = cv
	}
	return u, nil
}

// FromUpdate converts a store update to its fixture form. Handle fields
// are dropped.
func FromUpdate(u state.Update) FixtureUpdate {
	out := make(FixtureUpdate, len(u))
	for k, v := range u {
		if state.Schema[k].Kind == state.KindHandle {
			continue
		}
		if p, ok := v.(state.Phase); ok {
			out[string(k)] = p.String()
			continue
		}
		out[string(k)] = v
	}
	return out
}

// #endregion fixture-loader

// #region from-journal

// FromJournal turns journal history (oldest first) into a fixture. The
// first record's snapshot becomes the start state; every later record is a
// step whose expected panel is what table selects for its snapshot.
func FromJournal(description string, records []journal.Record, table *rules.Table) (*Fixture, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("journal is empty")
	}
	f := &Fixture{
		Description: description,
		Start:       FromUpdate(records[0].Snapshot.Fields()),
	}
	for _, rec := range records[1:] {
		f.Steps = append(f.Steps, FixtureStep{
			StepID:        rec.VersionID,
			Update:        FromUpdate(rec.Update),
			ExpectedPanel: table.Evaluate(rec.Snapshot, nil).Target,
			ExpectedPhase: rec.Phase.String(),
		})
	}
	return f, nil
}

// #endregion from-journal
