package main

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/schaermu/shelf/internal/asset"
)

type keyValue struct {
	key   string
	value any
}

// parseKeyValues parses "key=value" arguments. Values are read as YAML
// scalars, so numbers and booleans keep their type.
func parseKeyValues(pairs []string) ([]keyValue, error) {
	out := make([]keyValue, 0, len(pairs))
	for _, pair := range pairs {
		key, raw, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("keys must be given as key=value: %q", pair)
		}
		out = append(out, keyValue{key: key, value: parseValue(raw)})
	}
	return out, nil
}

func parseValue(raw string) any {
	if raw == "" {
		return ""
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}

// contentsFromPairs expands key/value pairs into one content record per asset.
// A key given once applies to all assets; keys given more than once must
// all be given the same number of times, which is the number of assets.
func contentsFromPairs(pairs []keyValue) ([]*asset.Asset, error) {
	var order []string
	values := make(map[string][]any)
	for _, kv := range pairs {
		if _, ok := values[kv.key]; !ok {
			order = append(order, kv.key)
		}
		values[kv.key] = append(values[kv.key], kv.value)
	}

	n := 1
	for _, key := range order {
		if c := len(values[key]); c > 1 {
			if n > 1 && c != n {
				return nil, fmt.Errorf("key %q is given %d times, other keys %d times", key, c, n)
			}
			n = c
		}
	}

	contents := make([]*asset.Asset, n)
	for i := range contents {
		a := asset.New()
		for _, key := range order {
			vals := values[key]
			if len(vals) == 1 {
				a.Set(key, vals[0])
			} else {
				a.Set(key, vals[i])
			}
		}
		contents[i] = a
	}
	return contents, nil
}

// deltaFromPairs builds the update applied by set. Keys may appear only once
// and must not be pseudo or reserved keys.
func deltaFromPairs(pairs []keyValue, keys asset.Keys) (*asset.Asset, error) {
	delta := asset.New()
	for _, kv := range pairs {
		if keys.IsPseudo(kv.key) || keys.IsReserved(kv.key) {
			return nil, fmt.Errorf("key %q cannot be set", kv.key)
		}
		if delta.Has(kv.key) {
			return nil, fmt.Errorf("key %q is given more than once", kv.key)
		}
		delta.Set(kv.key, kv.value)
	}
	return delta, nil
}
