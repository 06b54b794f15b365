// Package filter compiles `key=value` expressions into predicates over assets.
package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/schaermu/shelf/internal/asset"
)

// Special values understood by Match.
const (
	// Unset matches a missing key, a null value, or an empty string.
	Unset = "<unset>"

	// TypeList and TypeDict match values of the respective structure.
	TypeList = "<list>"
	TypeDict = "<dict>"

	// EmptyList and EmptyDict match empty structures literally.
	EmptyList = "[]"
	EmptyDict = "{}"
)

// ErrInvalidFilter is returned for expressions lacking an equals sign.
var ErrInvalidFilter = errors.New("filters must be formatted as `key=value`")

// Filter matches assets against a single key/value condition.
type Filter struct {
	Key   string
	Value string

	re *regexp.Regexp
}

// New parses expr, splitting at the first "=".
func New(expr string) (*Filter, error) {
	key, value, found := strings.Cut(expr, "=")
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, expr)
	}

	f := &Filter{Key: key, Value: value}
	// A malformed pattern is not an error; it simply never matches as a regex.
	if re, err := regexp.Compile("^(?:" + value + ")$"); err == nil {
		f.re = re
	}
	return f, nil
}

// Parse compiles several expressions, failing on the first invalid one.
func Parse(exprs []string) ([]*Filter, error) {
	filters := make([]*Filter, 0, len(exprs))
	for _, e := range exprs {
		f, err := New(e)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// IsPseudo reports whether the filter only inspects pseudo-keys, so it can be
// evaluated without reading asset content.
func (f *Filter) IsPseudo(keys asset.Keys) bool {
	return keys.IsPseudo(f.Key)
}

// Match reports whether a satisfies the filter.
func (f *Filter) Match(a *asset.Asset) bool {
	v, present := a.Get(f.Key)

	switch f.Value {
	case TypeList:
		_, ok := v.([]any)
		return present && ok
	case TypeDict:
		_, ok := v.(*asset.Asset)
		return present && ok
	case EmptyList, EmptyDict:
		return present && asset.Stringify(v) == f.Value
	case Unset:
		if a.IsEmpty() || !present {
			return true
		}
		if v == nil {
			return true
		}
		s, ok := v.(string)
		return ok && s == ""
	}

	if !present {
		return false
	}

	s := asset.Stringify(v)
	if f.re != nil && f.re.MatchString(s) {
		return true
	}
	return s == f.Value
}

// MatchAll reports whether a satisfies every filter.
func MatchAll(a *asset.Asset, filters []*Filter) bool {
	for _, f := range filters {
		if !f.Match(a) {
			return false
		}
	}
	return true
}

// String returns the original expression.
func (f *Filter) String() string {
	return f.Key + "=" + f.Value
}
