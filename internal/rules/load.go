package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jameskane05/nanauts-sub000/internal/state"
)

// #region file-format

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// #endregion file-format

// #region decode

// Decode parses a YAML rule file. Criteria values for schema fields are
// coerced to their declared kind, so phase fields accept names:
//
//	rules:
//	  - id: tutorial
//	    priority: 40
//	    criteria:
//	      currentState: {gte: XR_ACTIVE, lte: PLAYING}
//	      introComplete: false
func Decode(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	seen := map[string]bool{}
	for i := range f.Rules {
		r := &f.Rules[i]
		if r.ID == "" {
			return nil, fmt.Errorf("rule %d: missing id", i)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("rule %d: %w: %s", i, ErrDuplicateRule, r.ID)
		}
		seen[r.ID] = true
		resolved, err := r.Criteria.Resolve(func(field string, v any) (any, error) {
			return state.Coerce(state.Field(field), v)
		})
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		r.Criteria = resolved
		if r.Target == "" {
			r.Target = r.ID
		}
	}
	return f.Rules, nil
}

// LoadFile reads and decodes a YAML rule file.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	rules, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// PanelTable returns the built-in panel rules followed by extra, in order.
func PanelTable(extra ...Rule) (*Table, error) {
	return NewTable(append(DefaultPanelRules(), extra...)...)
}

// #endregion decode
