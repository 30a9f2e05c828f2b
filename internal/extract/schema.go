package extract

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
)

// Schema is the subset of JSON Schema the normalizer validates against:
// objects with a fixed property set, arrays, and the scalar types. Strict
// by construction: objects reject unknown fields and every property is
// required unless its type includes "null".
type Schema struct {
	Type       TypeSet            `json:"type"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
}

// TypeSet is a JSON Schema type that may be a single string or a list
// (e.g. ["string","null"]).
type TypeSet []string

// UnmarshalJSON accepts both "string" and ["string","null"] forms.
func (t *TypeSet) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = TypeSet{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return eris.Wrap(err, "schema: invalid type")
	}
	*t = TypeSet(list)
	return nil
}

// MarshalJSON emits the single-string form when possible.
func (t TypeSet) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

func (t TypeSet) nullable() bool {
	for _, s := range t {
		if s == "null" {
			return true
		}
	}
	return false
}

func (t TypeSet) has(name string) bool {
	for _, s := range t {
		if s == name {
			return true
		}
	}
	return false
}

// ParseSchema parses a raw JSON schema document.
func ParseSchema(raw []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, eris.Wrap(err, "schema: parse")
	}
	if len(s.Type) == 0 {
		return nil, eris.New("schema: missing type")
	}
	return &s, nil
}

// MustParseSchema parses a schema known at compile time; panics on error.
func MustParseSchema(raw string) *Schema {
	s, err := ParseSchema([]byte(raw))
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a decoded JSON value against the schema. Any deviation
// (missing field, extra field, type mismatch, non-nullable null) is an
// error: the merge step downstream relies on every successful extraction
// being shape-compatible.
func (s *Schema) Validate(v any) error {
	return s.validate(v, "$")
}

func (s *Schema) validate(v any, path string) error {
	if v == nil {
		if s.Type.nullable() {
			return nil
		}
		return eris.Errorf("schema: %s: null not allowed", path)
	}

	switch val := v.(type) {
	case map[string]any:
		if !s.Type.has("object") {
			return eris.Errorf("schema: %s: unexpected object", path)
		}
		for key := range val {
			if _, ok := s.Properties[key]; !ok {
				return eris.Errorf("schema: %s: unknown field %q", path, key)
			}
		}
		for key, prop := range s.Properties {
			pv, ok := val[key]
			if !ok {
				return eris.Errorf("schema: %s: missing field %q", path, key)
			}
			if err := prop.validate(pv, path+"."+key); err != nil {
				return err
			}
		}
		return nil

	case []any:
		if !s.Type.has("array") {
			return eris.Errorf("schema: %s: unexpected array", path)
		}
		if s.Items == nil {
			return nil
		}
		for i, item := range val {
			if err := s.Items.validate(item, eltPath(path, i)); err != nil {
				return err
			}
		}
		return nil

	case string:
		if !s.Type.has("string") {
			return eris.Errorf("schema: %s: unexpected string", path)
		}
		return nil

	case bool:
		if !s.Type.has("boolean") {
			return eris.Errorf("schema: %s: unexpected boolean", path)
		}
		return nil

	case float64:
		if s.Type.has("number") {
			return nil
		}
		if s.Type.has("integer") {
			if val == math.Trunc(val) {
				return nil
			}
			return eris.Errorf("schema: %s: expected integer, got %v", path, val)
		}
		return eris.Errorf("schema: %s: unexpected number", path)

	default:
		return eris.Errorf("schema: %s: unsupported value type %T", path, v)
	}
}

func eltPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
