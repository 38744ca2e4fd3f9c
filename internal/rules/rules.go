// Package rules picks the single active surface for a snapshot from a table
// of prioritized, criteria-guarded rules.
package rules

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jameskane05/nanauts-sub000/internal/criteria"
)

// #region types

// TargetHidden is the target reported when no rule matches.
const TargetHidden = "hidden"

// ErrDuplicateRule is returned when a rule ID is registered twice.
var ErrDuplicateRule = errors.New("duplicate rule id")

// Rule guards a target surface with criteria. Higher Priority wins. An
// Exclusive rule asks the caller to hide every other surface.
type Rule struct {
	ID        string            `yaml:"id"`
	Criteria  criteria.Criteria `yaml:"criteria"`
	Priority  int               `yaml:"priority"`
	Exclusive bool              `yaml:"exclusive"`
	Target    string            `yaml:"target"`
}

// Result is the outcome of an evaluation. The zero Result (plus
// TargetHidden) means no rule matched, which is a normal outcome.
type Result struct {
	RuleID    string
	Priority  int
	Exclusive bool
	Target    string
}

// None is the "no rule active" sentinel.
var None = Result{Target: TargetHidden}

// Active reports whether a rule matched.
func (r Result) Active() bool { return r.RuleID != "" }

func (r Result) String() string {
	if !r.Active() {
		return "none"
	}
	if r.Exclusive {
		return fmt.Sprintf("%s(p=%d, exclusive)->%s", r.RuleID, r.Priority, r.Target)
	}
	return fmt.Sprintf("%s(p=%d)->%s", r.RuleID, r.Priority, r.Target)
}

// #endregion types

// #region table

// Table is an ordered set of rules. Order matters: among equal priorities
// the rule added first wins.
type Table struct {
	rules []Rule
	index map[string]int
}

// NewTable builds a table from rules in the given order.
func NewTable(rules ...Rule) (*Table, error) {
	t := &Table{index: make(map[string]int, len(rules))}
	for _, r := range rules {
		if err := t.Add(r); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustTable is NewTable for static tables known to be valid.
func MustTable(rules ...Rule) *Table {
	t, err := NewTable(rules...)
	if err != nil {
		panic(err)
	}
	return t
}

// Add appends r. IDs must be unique and non-empty.
func (t *Table) Add(r Rule) error {
	if r.ID == "" {
		return errors.New("rule id is empty")
	}
	if _, ok := t.index[r.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRule, r.ID)
	}
	if r.Target == "" {
		r.Target = r.ID
	}
	t.index[r.ID] = len(t.rules)
	t.rules = append(t.rules, r)
	return nil
}

// Remove deletes the rule with id, keeping the order of the rest.
func (t *Table) Remove(id string) bool {
	i, ok := t.index[id]
	if !ok {
		return false
	}
	t.rules = append(t.rules[:i:i], t.rules[i+1:]...)
	delete(t.index, id)
	for j := i; j < len(t.rules); j++ {
		t.index[t.rules[j].ID] = j
	}
	return true
}

// Rule returns the rule with id.
func (t *Table) Rule(id string) (Rule, bool) {
	i, ok := t.index[id]
	if !ok {
		return Rule{}, false
	}
	return t.rules[i], true
}

// Rules returns the rules in table order.
func (t *Table) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

// Targets returns every distinct target in table order.
func (t *Table) Targets() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range t.rules {
		if !seen[r.Target] {
			seen[r.Target] = true
			out = append(out, r.Target)
		}
	}
	return out
}

// Len returns the number of rules.
func (t *Table) Len() int { return len(t.rules) }

// #endregion table

// #region evaluate

// Evaluate returns the highest-priority rule whose criteria match s. Extra
// rules (runtime-registered surfaces) are considered after the table's own
// rules at equal priority, in the order given. Evaluate never mutates the
// table or extra and returns the same Result for the same inputs.
func (t *Table) Evaluate(s criteria.Fields, extra []Rule) Result {
	ordered := make([]Rule, 0, len(t.rules)+len(extra))
	ordered = append(ordered, t.rules...)
	ordered = append(ordered, extra...)
	return Evaluate(s, ordered)
}

// Evaluate sorts rules by priority descending, keeping the given order for
// ties, and returns the first match.
func Evaluate(s criteria.Fields, rules []Rule) Result {
	ordered := append([]Rule(nil), rules...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	for _, r := range ordered {
		if criteria.Match(s, r.Criteria) {
			target := r.Target
			if target == "" {
				target = r.ID
			}
			return Result{
				RuleID:    r.ID,
				Priority:  r.Priority,
				Exclusive: r.Exclusive,
				Target:    target,
			}
		}
	}
	return None
}

// Matching returns every matching rule in evaluation order. Used by
// diagnostics to show what the winner outranked.
func (t *Table) Matching(s criteria.Fields, extra []Rule) []Rule {
	ordered := append(t.Rules(), extra...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	var out []Rule
	for _, r := range ordered {
		if criteria.Match(s, r.Criteria) {
			out = append(out, r)
		}
	}
	return out
}

// #endregion evaluate
