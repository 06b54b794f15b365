package asset

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// documentStart is written before every serialized asset.
const documentStart = "---\n"

// Marshal serializes the asset as YAML, dropping the top-level keys in strip.
// An empty result is rendered as a bare document start.
func Marshal(a *Asset, strip []string) ([]byte, error) {
	content := a.Without(strip...)
	if content.Len() == 0 {
		return []byte(documentStart), nil
	}

	node, err := content.toNode()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(documentStart)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("failed to encode asset: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode asset: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses YAML into an Asset. An empty document yields an empty Asset;
// a document whose root is not a mapping is rejected with ErrNotAnAsset.
func Unmarshal(data []byte) (*Asset, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid YAML: %v", ErrNotAnAsset, err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return New(), nil
		}
		root = root.Content[0]
	}

	switch root.Kind {
	case 0:
		return New(), nil
	case yaml.ScalarNode:
		if root.Tag == "!!null" {
			return New(), nil
		}
		return nil, fmt.Errorf("%w: content is a scalar, not a mapping", ErrNotAnAsset)
	case yaml.MappingNode:
		a := New()
		if err := a.fromNode(root); err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("%w: content is not a mapping", ErrNotAnAsset)
	}
}

// Load reads and parses an asset file.
func Load(path string) (*Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	a, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// MarshalYAML implements yaml.Marshaler so nested assets encode in order.
func (a *Asset) MarshalYAML() (interface{}, error) {
	return a.toNode()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Asset) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: line %d: expected a mapping", ErrNotAnAsset, value.Line)
	}
	a.keys = nil
	a.values = make(map[string]any)
	return a.fromNode(value)
}

func (a *Asset) toNode() (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range a.Keys() {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		valueNode, err := valueToNode(a.values[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		node.Content = append(node.Content, keyNode, valueNode)
	}
	return node, nil
}

func valueToNode(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case *Asset:
		return t.toNode()
	case []any:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range t {
			n, err := valueToNode(item)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, n)
		}
		return seq, nil
	}
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return n, nil
}

func (a *Asset) fromNode(node *yaml.Node) error {
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		v, err := nodeToValue(valueNode)
		if err != nil {
			return fmt.Errorf("key %q: %w", keyNode.Value, err)
		}
		a.setTop(keyNode.Value, v)
	}
	return nil
}

func nodeToValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return nodeToValue(node.Alias)
	case yaml.MappingNode:
		nested := New()
		if err := nested.fromNode(node); err != nil {
			return nil, err
		}
		return nested, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			v, err := nodeToValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return nil, err
	}
	return normalize(v), nil
}

// Equal reports whether a and b have the same persisted content: keys in
// ignore are skipped at the top level and numbers compare by value.
// Key order does not matter.
func Equal(a, b *Asset, ignore []string) bool {
	return valuesEqual(a.Without(ignore...), b.Without(ignore...))
}

func valuesEqual(x, y any) bool {
	switch xv := x.(type) {
	case *Asset:
		yv, ok := y.(*Asset)
		if !ok || xv.Len() != yv.Len() {
			return false
		}
		for _, k := range xv.keys {
			other, ok := yv.values[k]
			if !ok || !valuesEqual(xv.values[k], other) {
				return false
			}
		}
		return true
	case []any:
		yv, ok := y.([]any)
		if !ok || len(xv) != len(yv) {
			return false
		}
		for i := range xv {
			if !valuesEqual(xv[i], yv[i]) {
				return false
			}
		}
		return true
	}
	if xf, ok := toFloat(x); ok {
		yf, ok := toFloat(y)
		return ok && xf == yf
	}
	return reflect.DeepEqual(x, y)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Stringify renders a value the way it appears in YAML flow style:
// empty mappings and sequences become "{}" and "[]", nil becomes "null".
// Booleans are lowercase and integral floats drop the fraction, matching
// what the codec writes back to disk, so names built from them stay stable
// across a save.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case float64:
		if math.IsInf(t, 0) || math.IsNaN(t) {
			return strconv.FormatFloat(t, 'g', -1, 64)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case *Asset:
		parts := make([]string, 0, t.Len())
		for _, k := range t.keys {
			parts = append(parts, k+": "+Stringify(t.values[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, Stringify(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(v)
}
