package intent

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Entities is an insertion-ordered string mapping. The zero value is empty
// and ready to use.
type Entities struct {
	keys   []string
	values map[string]string
}

// NewEntities builds entities from key, value pairs. A trailing key
// without a value is ignored.
func NewEntities(pairs ...string) Entities {
	var e Entities
	for i := 0; i+1 < len(pairs); i += 2 {
		e.set(pairs[i], pairs[i+1])
	}
	return e
}

func (e *Entities) set(key, value string) {
	if e.values == nil {
		e.values = make(map[string]string)
	}
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

// Get returns the value stored under key.
func (e Entities) Get(key string) (string, bool) {
	v, ok := e.values[key]
	return v, ok
}

// Has reports whether key is present.
func (e Entities) Has(key string) bool {
	_, ok := e.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (e Entities) Keys() []string {
	return append([]string(nil), e.keys...)
}

// Len returns the number of entries.
func (e Entities) Len() int {
	return len(e.keys)
}

// Merge returns a copy of e followed by the entries of other whose keys e
// does not already hold.
func (e Entities) Merge(other Entities) Entities {
	var out Entities
	for _, k := range e.keys {
		out.set(k, e.values[k])
	}
	for _, k := range other.keys {
		if !out.Has(k) {
			out.set(k, other.values[k])
		}
	}
	return out
}

// MarshalJSON encodes the entities as a JSON object in insertion order.
func (e Entities) MarshalJSON() ([]byte, error) {
	out := []byte("{}")
	for _, k := range e.keys {
		var err error
		// Escape path metacharacters so keys like "a.b" stay flat.
		out, err = sjson.SetBytes(out, escapePath(k), e.values[k])
		if err != nil {
			return nil, fmt.Errorf("encode entity %q: %w", k, err)
		}
	}
	return out, nil
}

// UnmarshalJSON decodes a JSON object, keeping document order. Non-string
// values are kept as their raw JSON text.
func (e *Entities) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid entities JSON")
	}
	parsed := gjson.ParseBytes(data)
	if parsed.Type == gjson.Null {
		*e = Entities{}
		return nil
	}
	if !parsed.IsObject() {
		return fmt.Errorf("entities must be a JSON object")
	}
	*e = entitiesFromJSON(parsed)
	return nil
}

func entitiesFromJSON(obj gjson.Result) Entities {
	var out Entities
	obj.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.Null {
			return true
		}
		v := value.String()
		if value.Type == gjson.JSON {
			v = value.Raw
		}
		out.set(key.String(), v)
		return true
	})
	return out
}

func escapePath(key string) string {
	buf := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '*', '?', '|', '#', '@', '\\', ':', '!', '=', '<', '>', '%':
			buf = append(buf, '\\')
		}
		buf = append(buf, key[i])
	}
	return string(buf)
}
