// Package metadata models document metadata as an ordered mapping of
// tagged values. Order matters: meta tags are emitted in source order.
package metadata

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Kind tags a Value.
type Kind int

const (
	Null Kind = iota
	Scalar
	Bool
	Array
	Object
)

// Value is one metadata value. Only the fields matching Kind are set.
type Value struct {
	Kind   Kind
	Text   string   // Scalar: literal text as written
	Bool   bool     // Bool
	Items  []Value  // Array
	Fields Metadata // Object
}

// String renders scalars and booleans. Arrays and objects have no flat
// string form and render empty.
func (v Value) String() string {
	switch v.Kind {
	case Scalar:
		return v.Text
	case Bool:
		if v.Bool {
			return "true"
		}
		return "false"
	}
	return ""
}

// Interface converts v to plain Go values for encoding.
func (v Value) Interface() any {
	switch v.Kind {
	case Scalar:
		return v.Text
	case Bool:
		return v.Bool
	case Array:
		out := make([]any, len(v.Items))
		for i, item := range v.Items {
			out[i] = item.Interface()
		}
		return out
	case Object:
		out := make(map[string]any, len(v.Fields))
		for _, e := range v.Fields {
			out[e.Key] = e.Value.Interface()
		}
		return out
	}
	return nil
}

// Entry is one key/value pair.
type Entry struct {
	Key   string
	Value Value
}

// Metadata is an ordered mapping. Keys are unique.
type Metadata []Entry

// Get returns the value stored under key.
func (m Metadata) Get(key string) (Value, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// GetString returns the string form of key, or "" when absent.
func (m Metadata) GetString(key string) string {
	v, _ := m.Get(key)
	return v.String()
}

// Set overwrites key in place, or appends it.
func (m Metadata) Set(key string, v Value) Metadata {
	for i, e := range m {
		if e.Key == key {
			m[i].Value = v
			return m
		}
	}
	return append(m, Entry{Key: key, Value: v})
}

// Merge layers over on top of m. Keys of m keep their position; keys only
// present in over follow in over's order. Neither input is modified.
func (m Metadata) Merge(over Metadata) Metadata {
	out := make(Metadata, len(m), len(m)+len(over))
	copy(out, m)
	for _, e := range over {
		out = out.Set(e.Key, e.Value)
	}
	return out
}

// ErrNotMapping is returned when a metadata document is not a mapping.
var ErrNotMapping = errors.New("metadata must be a mapping")

// Parse decodes a YAML (or JSON) mapping, preserving key order.
func Parse(data []byte) (Metadata, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return Metadata{}, nil
	}
	v, err := FromNode(&doc)
	if err != nil {
		return nil, err
	}
	switch v.Kind {
	case Object:
		return v.Fields, nil
	case Null:
		return Metadata{}, nil
	}
	return nil, ErrNotMapping
}

// FromNode converts a decoded YAML node.
func FromNode(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Value{Kind: Null}, nil
		}
		return FromNode(n.Content[0])
	case yaml.AliasNode:
		if n.Alias == nil {
			return Value{Kind: Null}, nil
		}
		return FromNode(n.Alias)
	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			item, err := FromNode(c)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return Value{Kind: Array, Items: items}, nil
	case yaml.MappingNode:
		fields := make(Metadata, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, err := FromNode(n.Content[i])
			if err != nil {
				return Value{}, err
			}
			v, err := FromNode(n.Content[i+1])
			if err != nil {
				return Value{}, err
			}
			fields = fields.Set(k.String(), v)
		}
		return Value{Kind: Object, Fields: fields}, nil
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return Value{Kind: Null}, nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return Value{}, fmt.Errorf("line %d: %w", n.Line, err)
			}
			return Value{Kind: Bool, Bool: b}, nil
		}
		return Value{Kind: Scalar, Text: n.Value}, nil
	}
	return Value{}, fmt.Errorf("line %d: unsupported metadata node", n.Line)
}
