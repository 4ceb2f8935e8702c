package document

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FromYAML parses a YAML (or JSON) document whose root is a mapping, keeping
// key order. Empty input yields an empty Map.
func FromYAML(data []byte) (*Map, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if root.Kind == 0 {
		return NewMap(), nil
	}
	node := &root
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return NewMap(), nil
		}
		node = node.Content[0]
	}
	v, err := fromNode(node, "")
	if err != nil {
		return nil, err
	}
	m, ok := v.AsMap()
	if !ok {
		return nil, &SerializationError{Reason: fmt.Sprintf("document root must be a mapping, got %s", v.Kind())}
	}
	return m, nil
}

func fromNode(n *yaml.Node, path string) (Value, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return fromNode(n.Alias, path)
	case yaml.MappingNode:
		return fromMapping(n, path)
	case yaml.SequenceNode:
		seq := make([]Value, 0, len(n.Content))
		for i, e := range n.Content {
			child, err := fromNode(e, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return Value{}, err
			}
			seq = append(seq, child)
		}
		return Sequence(seq...), nil
	case yaml.ScalarNode:
		return fromScalar(n, path)
	}
	return Value{}, &SerializationError{Path: path, Reason: fmt.Sprintf("line %d: unsupported yaml node", n.Line)}
}

// fromMapping converts a mapping node. Merge keys (<<: *base) fold the
// aliased mappings in at their position; explicit keys always win, and among
// several merged mappings the first one to define a key wins.
func fromMapping(n *yaml.Node, path string) (Value, error) {
	explicit := make(map[string]bool)
	for i := 0; i+1 < len(n.Content); i += 2 {
		if k := n.Content[i]; !isMergeKey(k) {
			explicit[k.Value] = true
		}
	}

	m := NewMap()
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return Value{}, &SerializationError{Path: path, Reason: fmt.Sprintf("line %d: mapping keys must be scalars", k.Line)}
		}
		if isMergeKey(k) {
			if err := mergeInto(m, v, path, explicit); err != nil {
				return Value{}, err
			}
			continue
		}
		child, err := fromNode(v, joinPath(path, k.Value))
		if err != nil {
			return Value{}, err
		}
		m.Set(k.Value, child)
	}
	return MapValue(m), nil
}

func isMergeKey(k *yaml.Node) bool {
	return k.Kind == yaml.ScalarNode && k.ShortTag() == "!!merge"
}

// mergeInto copies the keys of the mapping (or sequence of mappings) v into
// m, skipping keys set explicitly or already merged.
func mergeInto(m *Map, v *yaml.Node, path string, explicit map[string]bool) error {
	sources := []*yaml.Node{v}
	if v.Kind == yaml.SequenceNode {
		sources = v.Content
	}
	for _, src := range sources {
		val, err := fromNode(src, path)
		if err != nil {
			return err
		}
		sub, ok := val.AsMap()
		if !ok {
			return &SerializationError{Path: path, Reason: fmt.Sprintf("line %d: merge key needs a mapping, got %s", src.Line, val.Kind())}
		}
		sub.Range(func(key string, x Value) bool {
			if !explicit[key] && !m.Has(key) {
				m.Set(key, x)
			}
			return true
		})
	}
	return nil
}

func fromScalar(n *yaml.Node, path string) (Value, error) {
	switch n.ShortTag() {
	case "!!str":
		return String(n.Value), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return Value{}, &SerializationError{Path: path, Reason: err.Error()}
		}
		return Int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, &SerializationError{Path: path, Reason: err.Error()}
		}
		return Float(f), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, &SerializationError{Path: path, Reason: err.Error()}
		}
		return Bool(b), nil
	case "!!null":
		return Value{}, &SerializationError{Path: path, Reason: fmt.Sprintf("line %d: null values are not representable", n.Line)}
	}
	return Value{}, &SerializationError{Path: path, Reason: fmt.Sprintf("line %d: unsupported scalar tag %s", n.Line, n.ShortTag())}
}

// FromTOML parses a TOML document, recovering key order from the decoder's
// metadata.
func FromTOML(data []byte) (*Map, error) {
	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, fmt.Errorf("parsing toml: %w", err)
	}

	order := make(map[string][]string)
	seen := make(map[string]bool)
	for _, key := range md.Keys() {
		if len(key) == 0 {
			continue
		}
		full := strings.Join(key, "\x00")
		if seen[full] {
			continue
		}
		seen[full] = true
		parent := strings.Join(key[:len(key)-1], "\x00")
		order[parent] = append(order[parent], key[len(key)-1])
	}

	return fromTOMLTable(raw, nil, order)
}

func fromTOMLTable(raw map[string]any, path []string, order map[string][]string) (*Map, error) {
	keys := orderedKeys(raw, order[strings.Join(path, "\x00")])
	m := NewMap()
	for _, k := range keys {
		child := append(append([]string(nil), path...), k)
		v, err := fromTOMLValue(raw[k], child, order)
		if err != nil {
			return nil, err
		}
		m.Set(k, v)
	}
	return m, nil
}

func fromTOMLValue(x any, path []string, order map[string][]string) (Value, error) {
	switch t := x.(type) {
	case map[string]any:
		m, err := fromTOMLTable(t, path, order)
		if err != nil {
			return Value{}, err
		}
		return MapValue(m), nil
	case []map[string]any:
		seq := make([]Value, len(t))
		for i, e := range t {
			m, err := fromTOMLTable(e, path, order)
			if err != nil {
				return Value{}, err
			}
			seq[i] = MapValue(m)
		}
		return Sequence(seq...), nil
	case []any:
		seq := make([]Value, len(t))
		for i, e := range t {
			v, err := fromTOMLValue(e, path, order)
			if err != nil {
				return Value{}, err
			}
			seq[i] = v
		}
		return Sequence(seq...), nil
	case string:
		return String(t), nil
	case int64:
		return Int(t), nil
	case float64:
		return Float(t), nil
	case bool:
		return Bool(t), nil
	}
	return Value{}, &SerializationError{Path: strings.Join(path, "."), Reason: fmt.Sprintf("unsupported toml value %T", x)}
}

// orderedKeys returns the keys of raw following hint, with any keys the hint
// misses appended in sorted order.
func orderedKeys(raw map[string]any, hint []string) []string {
	keys := make([]string, 0, len(raw))
	used := make(map[string]bool, len(raw))
	for _, k := range hint {
		if _, ok := raw[k]; ok && !used[k] {
			keys = append(keys, k)
			used[k] = true
		}
	}
	var rest []string
	for k := range raw {
		if !used[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
