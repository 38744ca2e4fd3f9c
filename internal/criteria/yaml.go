package criteria

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// #region yaml

// UnmarshalYAML decodes either a scalar literal (equality) or a mapping of
// gte/lte/eq/ne/expr keys.
//
//	currentState: {gte: XR_ACTIVE}
//	roomSetupRequired: true
//	musicVolume: {expr: "value > 0.2"}
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return err
		}
		*c = Equals(v)
		return nil
	case yaml.MappingNode:
		var raw map[string]any
		if err := node.Decode(&raw); err != nil {
			return err
		}
		if code, ok := raw["expr"]; ok {
			if len(raw) != 1 {
				return fmt.Errorf("line %d: expr cannot be combined with other operators", node.Line)
			}
			s, ok := code.(string)
			if !ok {
				return fmt.Errorf("line %d: expr must be a string", node.Line)
			}
			if err := Compile(s); err != nil {
				return fmt.Errorf("line %d: compile expr: %w", node.Line, err)
			}
			*c = Expr(s)
			return nil
		}
		var ops []Operand
		// fixed order keeps String() output stable
		for _, key := range []string{"gte", "lte", "eq", "ne"} {
			v, ok := raw[key]
			if !ok {
				continue
			}
			ops = append(ops, Operand{Op: parseOp(key), Value: v})
			delete(raw, key)
		}
		for key := range raw {
			return fmt.Errorf("line %d: unknown operator %q", node.Line, key)
		}
		if len(ops) == 0 {
			return fmt.Errorf("line %d: empty operator set", node.Line)
		}
		*c = Ops(ops...)
		return nil
	default:
		return fmt.Errorf("line %d: condition must be a scalar or mapping", node.Line)
	}
}

func parseOp(s string) Op {
	switch s {
	case "gte":
		return OpGte
	case "lte":
		return OpLte
	case "eq":
		return OpEq
	case "ne":
		return OpNe
	}
	return 0
}

// #endregion yaml
