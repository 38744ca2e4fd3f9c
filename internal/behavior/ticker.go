package behavior

import (
	"errors"

	bt "github.com/joeycumines/go-behaviortree"
)

// #region ticker

// Ticker completes timed auto-completing states once per frame. Each actor
// runs a two-node sequence: "is the timed state due?" then "complete it".
type Ticker struct {
	m *Machine
}

// NewTicker returns a ticker driving m.
func NewTicker(m *Machine) *Ticker {
	return &Ticker{m: m}
}

// Tick evaluates every tracked actor and returns the ones whose state was
// completed this frame.
func (t *Ticker) Tick() []ActorID {
	var completed []ActorID
	for _, id := range t.m.Actors() {
		status, err := t.tree(id).Tick()
		if err != nil {
			t.m.logger.Warn("[BEHAVIOR] tick failed", "actor", int(id), "error", err)
			continue
		}
		if status == bt.Success {
			completed = append(completed, id)
		}
	}
	return completed
}

func (t *Ticker) tree(id ActorID) bt.Node {
	return bt.New(
		bt.Sequence,
		bt.New(func([]bt.Node) (bt.Status, error) {
			if t.due(id) {
				return bt.Success, nil
			}
			return bt.Failure, nil
		}),
		bt.New(func([]bt.Node) (bt.Status, error) {
			if !t.m.OnStateComplete(id) {
				return bt.Failure, errors.New("state no longer auto-completes")
			}
			return bt.Success, nil
		}),
	)
}

func (t *Ticker) due(id ActorID) bool {
	cfg := Configs[t.m.State(id)]
	if !cfg.AutoCompletes || cfg.Duration <= 0 {
		return false
	}
	return t.m.Elapsed(id) >= cfg.Duration
}

// #endregion ticker
