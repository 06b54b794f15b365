// Package asset implements the content record of an inventory item.
//
// An Asset is an ordered mapping of string keys to YAML-representable values
// (bool, int, float64, string, nil, nested *Asset, []any). Key order survives a
// load/modify/save round trip. Keys containing dots address nested mappings
// ("nested.key").
//
// Besides user keys, an Asset may carry pseudo-keys (derived from context, such
// as its path) and reserved keys (with functional meaning to the inventory).
// Neither is ever persisted; which keys fall into each class is described by a
// Keys value owned by the store.
package asset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Well-known keys.
const (
	// KeyPath is the pseudo-key holding the absolute path of an asset.
	KeyPath = "path"

	// KeyDirectory is the reserved key naming the destination directory of a new asset.
	KeyDirectory = "directory"

	// KeyIsAssetDirectory is the reserved key marking an asset as an asset directory.
	KeyIsAssetDirectory = "is_asset_directory"

	// KeyTemplate is the reserved key naming the template a new asset is seeded from.
	KeyTemplate = "template"
)

// ErrNotAnAsset is returned when content does not describe an asset.
var ErrNotAnAsset = errors.New("not an asset")

// Keys classifies non-user keys.
type Keys struct {
	Pseudo   []string
	Reserved []string
}

// DefaultKeys returns the key classes used by a standard inventory.
func DefaultKeys() Keys {
	return Keys{
		Pseudo:   []string{KeyPath},
		Reserved: []string{KeyDirectory, KeyIsAssetDirectory, KeyTemplate},
	}
}

// NonPersisted returns pseudo and reserved keys in one list.
func (k Keys) NonPersisted() []string {
	out := make([]string, 0, len(k.Pseudo)+len(k.Reserved))
	out = append(out, k.Pseudo...)
	return append(out, k.Reserved...)
}

// IsPseudo reports whether key is a pseudo-key.
func (k Keys) IsPseudo(key string) bool {
	return contains(k.Pseudo, key)
}

// IsReserved reports whether key is a reserved key.
func (k Keys) IsReserved(key string) bool {
	return contains(k.Reserved, key)
}

// Asset is an ordered key/value record.
type Asset struct {
	keys   []string
	values map[string]any
}

// New returns an empty Asset.
func New() *Asset {
	return &Asset{values: make(map[string]any)}
}

// FromMap builds an Asset from a plain map. Keys are inserted in sorted order
// since Go maps carry none.
func FromMap(m map[string]any) *Asset {
	a := New()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		a.setTop(k, normalize(m[k]))
	}
	return a
}

// Len returns the number of top-level keys.
func (a *Asset) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// IsEmpty reports whether the asset has no keys at all.
func (a *Asset) IsEmpty() bool {
	return a.Len() == 0
}

// Keys returns the top-level keys in insertion order.
func (a *Asset) Keys() []string {
	if a == nil {
		return nil
	}
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

// FlatKeys returns all leaf keys in dot notation, depth first, in order.
// Nested mappings themselves are not listed.
func (a *Asset) FlatKeys() []string {
	var out []string
	for _, k := range a.Keys() {
		if nested, ok := a.values[k].(*Asset); ok && nested.Len() > 0 {
			for _, sub := range nested.FlatKeys() {
				out = append(out, k+"."+sub)
			}
			continue
		}
		out = append(out, k)
	}
	return out
}

// Get returns the value stored at key. Dotted keys descend into nested mappings.
func (a *Asset) Get(key string) (any, bool) {
	if a == nil {
		return nil, false
	}
	if v, ok := a.values[key]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(key, ".")
	if !found {
		return nil, false
	}
	nested, ok := a.values[head].(*Asset)
	if !ok {
		return nil, false
	}
	return nested.Get(rest)
}

// Has reports whether key is present.
func (a *Asset) Has(key string) bool {
	_, ok := a.Get(key)
	return ok
}

// GetString returns the value at key rendered as a string and whether it exists.
func (a *Asset) GetString(key string) (string, bool) {
	v, ok := a.Get(key)
	if !ok {
		return "", false
	}
	return Stringify(v), true
}

// Set stores value at key, creating intermediate mappings for dotted keys.
// Plain maps are converted to nested Assets.
func (a *Asset) Set(key string, value any) {
	value = normalize(value)
	if _, ok := a.values[key]; ok || !strings.Contains(key, ".") {
		a.setTop(key, value)
		return
	}
	head, rest, _ := strings.Cut(key, ".")
	nested, ok := a.values[head].(*Asset)
	if !ok {
		nested = New()
		a.setTop(head, nested)
	}
	nested.Set(rest, value)
}

// Delete removes key. Dotted keys address nested mappings.
func (a *Asset) Delete(key string) {
	if _, ok := a.values[key]; ok {
		a.deleteTop(key)
		return
	}
	head, rest, found := strings.Cut(key, ".")
	if !found {
		return
	}
	if nested, ok := a.values[head].(*Asset); ok {
		nested.Delete(rest)
	}
}

// Update copies every key of other into a, keeping a's order for existing
// keys and appending new ones. Mappings present on both sides are merged
// key by key, so {specs: {ram: 16}} leaves the siblings of specs.ram intact.
func (a *Asset) Update(other *Asset) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		incoming, isMapping := other.values[k].(*Asset)
		if existing, ok := a.values[k].(*Asset); ok && isMapping {
			existing.Update(incoming)
			continue
		}
		a.Set(k, cloneValue(other.values[k]))
	}
}

// Clone returns a deep copy.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	c := &Asset{
		keys:   make([]string, len(a.keys)),
		values: make(map[string]any, len(a.values)),
	}
	copy(c.keys, a.keys)
	for k, v := range a.values {
		c.values[k] = cloneValue(v)
	}
	return c
}

// Without returns a copy lacking the given top-level keys.
func (a *Asset) Without(keys ...string) *Asset {
	c := a.Clone()
	if c == nil {
		return New()
	}
	for _, k := range keys {
		c.deleteTop(k)
	}
	return c
}

// Map returns the content as a plain map, recursively.
func (a *Asset) Map() map[string]any {
	out := make(map[string]any, a.Len())
	for _, k := range a.Keys() {
		out[k] = plain(a.values[k])
	}
	return out
}

// Path returns the pseudo-key path, or "" if unset.
func (a *Asset) Path() string {
	v, ok := a.Get(KeyPath)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// SetPath sets the pseudo-key path.
func (a *Asset) SetPath(p string) {
	a.setTop(KeyPath, p)
}

// IsAssetDirectory reports whether the reserved key marks this as an asset directory.
func (a *Asset) IsAssetDirectory() bool {
	v, ok := a.Get(KeyIsAssetDirectory)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true") || b == "yes"
	}
	return false
}

// String renders the asset as YAML with every key included.
func (a *Asset) String() string {
	data, err := Marshal(a, nil)
	if err != nil {
		return fmt.Sprintf("<asset: %v>", err)
	}
	return string(data)
}

func (a *Asset) setTop(key string, value any) {
	if a.values == nil {
		a.values = make(map[string]any)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

func (a *Asset) deleteTop(key string) {
	if _, ok := a.values[key]; !ok {
		return
	}
	delete(a.values, key)
	for i, k := range a.keys {
		if k == key {
			a.keys = append(a.keys[:i], a.keys[i+1:]...)
			break
		}
	}
}

// normalize converts plain Go containers into the types an Asset stores.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return FromMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	case int64:
		return int(t)
	case int32:
		return int(t)
	case float32:
		return float64(t)
	}
	return v
}

func plain(v any) any {
	switch t := v.(type) {
	case *Asset:
		return t.Map()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item)
		}
		return out
	}
	return v
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case *Asset:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	}
	return v
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
