package health

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jameskane05/nanauts-sub000/internal/state"
)

// ToStruct converts a snapshot into a protobuf Struct. Phases become their
// names; handle fields become a presence flag since they are opaque.
func ToStruct(s state.Snapshot) (*structpb.Struct, error) {
	fields := s.Fields()
	m := make(map[string]any, len(fields))
	for k, v := range fields {
		switch {
		case state.Schema[k].Kind == state.KindHandle:
			m[string(k)] = v != nil
		default:
			m[string(k)] = plain(v)
		}
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("snapshot to struct: %w", err)
	}
	return st, nil
}

func plain(v any) any {
	switch x := v.(type) {
	case state.Phase:
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		return v
	}
}

// MarshalJSON renders a snapshot as indented protobuf JSON.
func MarshalJSON(s state.Snapshot) ([]byte, error) {
	st, err := ToStruct(s)
	if err != nil {
		return nil, err
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(st)
}
