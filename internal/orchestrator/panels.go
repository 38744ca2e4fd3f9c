package orchestrator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jameskane05/nanauts-sub000/internal/rules"
	"github.com/jameskane05/nanauts-sub000/internal/state"
)

// #region panels

// Panels keeps exactly one spatial panel visible: the target of the
// highest-priority matching rule. It is driven from the store's
// notification loop and is not safe for concurrent use.
type Panels struct {
	base
	table   *rules.Table
	custom  []rules.Rule
	host    PanelHost
	active  rules.Result
	visible map[string]bool
	last    state.Snapshot
	synced  bool

	// followers read Exclusive and are re-synced after a runtime change.
	followers []Listener
}

// NewPanels builds the panel listener. A nil table uses the built-in panel
// rules.
func NewPanels(table *rules.Table, host PanelHost, opts ...Option) *Panels {
	if table == nil {
		table = rules.MustTable(rules.DefaultPanelRules()...)
	}
	return &Panels{
		base:    newBase(opts),
		table:   table,
		host:    host,
		active:  rules.None,
		visible: map[string]bool{},
	}
}

// OnStateChanged re-evaluates the rule table when a field it reads changed.
func (p *Panels) OnStateChanged(next, prev state.Snapshot) {
	p.last = next
	if p.synced {
		if next.Equal(prev) || !touches(next, prev, p.rules()) {
			return
		}
	}
	p.synced = true
	res := p.table.Evaluate(next, p.custom)
	p.apply(res, res.RuleID)
}

func (p *Panels) rules() []rules.Rule {
	return append(p.table.Rules(), p.custom...)
}

func (p *Panels) apply(res rules.Result, reason string) {
	if res == p.active {
		return
	}
	old := p.active
	p.active = res
	p.logger.Debug("[PANELS] active rule changed", "from", old.String(), "to", res.String())

	ids := make([]string, 0, len(p.visible))
	for id := range p.visible {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if id == res.Target && res.Active() {
			continue
		}
		p.host.Hide(id)
		delete(p.visible, id)
		p.rec.Record("panels", id, "hide", hideReason(res, reason))
	}
	if res.Active() && !p.visible[res.Target] {
		p.host.Show(res.Target)
		p.visible[res.Target] = true
		p.rec.Record("panels", res.Target, "show", reason)
	}
}

func hideReason(res rules.Result, reason string) string {
	switch {
	case !res.Active():
		return "no rule matched"
	case res.Exclusive:
		return "exclusive " + reason
	default:
		return "superseded by " + reason
	}
}

// Active returns the rule currently driving the visible panel.
func (p *Panels) Active() rules.Result { return p.active }

// Exclusive reports whether the active rule asked every other surface to
// hide.
func (p *Panels) Exclusive() bool { return p.active.Exclusive }

// Visible returns the ids of the panels this listener has shown, sorted.
func (p *Panels) Visible() []string {
	out := make([]string, 0, len(p.visible))
	for id := range p.visible {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// #endregion panels

// #region registration

// RegisterPanel adds a runtime surface. It competes with the table's rules
// and loses ties against them. The last seen snapshot is re-evaluated
// immediately.
func (p *Panels) RegisterPanel(r rules.Rule) error {
	if r.ID == "" {
		return errors.New("panel rule id is empty")
	}
	if _, ok := p.table.Rule(r.ID); ok {
		return fmt.Errorf("%w: %s", rules.ErrDuplicateRule, r.ID)
	}
	for _, c := range p.custom {
		if c.ID == r.ID {
			return fmt.Errorf("%w: %s", rules.ErrDuplicateRule, r.ID)
		}
	}
	if r.Target == "" {
		r.Target = r.ID
	}
	p.custom = append(p.custom, r)
	p.reevaluate("register " + r.ID)
	return nil
}

// UnregisterPanel removes a runtime surface, hiding it if it was active.
func (p *Panels) UnregisterPanel(id string) bool {
	for i, c := range p.custom {
		if c.ID == id {
			p.custom = append(p.custom[:i:i], p.custom[i+1:]...)
			p.reevaluate("unregister " + id)
			return true
		}
	}
	return false
}

func (p *Panels) reevaluate(why string) {
	if !p.synced {
		return
	}
	res := p.table.Evaluate(p.last, p.custom)
	reason := res.RuleID
	if reason == "" {
		reason = why
	}
	p.apply(res, reason)
	for _, f := range p.followers {
		f.OnStateChanged(p.last, p.last)
	}
}

func (p *Panels) follow(l Listener) { p.followers = append(p.followers, l) }

// #endregion registration
