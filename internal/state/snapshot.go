package state

import (
	"reflect"
	"sort"
)

// #region update

// Update is a partial snapshot. Keys present are overwritten on merge, keys
// absent keep their prior value.
type Update map[Field]any

// Keys returns the fields u touches, sorted.
func (u Update) Keys() []Field {
	out := make([]Field, 0, len(u))
	for k := range u {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a shallow copy of u.
func (u Update) Clone() Update {
	out := make(Update, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}

// #endregion update

// #region snapshot

// Snapshot is a point-in-time copy of the session fields. Snapshots are
// never mutated after construction; With returns a new one.
type Snapshot struct {
	fields map[Field]any
}

// NewSnapshot builds a snapshot holding exactly u.
func NewSnapshot(u Update) Snapshot {
	return Snapshot{}.With(u)
}

// With returns a copy of s with u merged over it.
func (s Snapshot) With(u Update) Snapshot {
	next := make(map[Field]any, len(s.fields)+len(u))
	for k, v := range s.fields {
		next[k] = v
	}
	for k, v := range u {
		next[k] = v
	}
	return Snapshot{fields: next}
}

// Lookup implements criteria.Fields.
func (s Snapshot) Lookup(name string) (any, bool) {
	v, ok := s.fields[Field(name)]
	return v, ok
}

// Map implements criteria.Mapper. The returned map is a copy.
func (s Snapshot) Map() map[string]any {
	out := make(map[string]any, len(s.fields))
	for k, v := range s.fields {
		out[string(k)] = v
	}
	return out
}

// Fields returns a copy of every field.
func (s Snapshot) Fields() Update {
	return Update(s.fields).Clone()
}

// Len returns the number of fields present.
func (s Snapshot) Len() int { return len(s.fields) }

// Get returns the value of f, nil if absent.
func (s Snapshot) Get(f Field) any { return s.fields[f] }

// Has reports whether f is present, even when its value is nil.
func (s Snapshot) Has(f Field) bool {
	_, ok := s.fields[f]
	return ok
}

// Phase returns the current lifecycle phase.
func (s Snapshot) Phase() Phase {
	p, _ := s.PhaseOf(CurrentState)
	return p
}

// PhaseOf returns a phase-typed field. ok is false when the field is absent
// or nil.
func (s Snapshot) PhaseOf(f Field) (Phase, bool) {
	p, ok := s.fields[f].(Phase)
	return p, ok
}

// Bool returns a boolean field, false when absent.
func (s Snapshot) Bool(f Field) bool {
	b, _ := s.fields[f].(bool)
	return b
}

// Float returns a numeric field, 0 when absent.
func (s Snapshot) Float(f Field) float64 {
	x, _ := asFloat(s.fields[f])
	return x
}

// Text returns a string field. ok is false when absent or nil.
func (s Snapshot) Text(f Field) (string, bool) {
	v, ok := s.fields[f].(string)
	return v, ok
}

// Changed reports whether any of fields differs between s and prev.
func (s Snapshot) Changed(prev Snapshot, fields ...Field) bool {
	for _, f := range fields {
		a, aok := s.fields[f]
		b, bok := prev.fields[f]
		if aok != bok || !sameValue(a, b) {
			return true
		}
	}
	return false
}

// Diff returns the fields whose value differs between s and prev.
func (s Snapshot) Diff(prev Snapshot) []Field {
	seen := map[Field]bool{}
	var out []Field
	for k := range s.fields {
		seen[k] = true
		if s.Changed(prev, k) {
			out = append(out, k)
		}
	}
	for k := range prev.fields {
		if !seen[k] {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Equal reports whether both snapshots hold the same fields and values.
func (s Snapshot) Equal(other Snapshot) bool {
	return len(s.fields) == len(other.fields) && len(s.Diff(other)) == 0
}

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// #endregion snapshot
