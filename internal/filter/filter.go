// Package filter implements the retrieval core's metadata filter language:
// a recursive-descent parser over a compact expression syntax plus a
// predicate evaluator over free-form JSON metadata. It is a near-verbatim
// port of decisiongraph/leann-rs's src/index/filter.rs.
package filter

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	amerrors "github.com/leanngo/leanngo/internal/errors"
)

// Op identifies a leaf comparison operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpNotIn
	OpContains
	OpStartsWith
	OpEndsWith
	OpExists
)

// Condition is a single leaf predicate: field <op> value.
type Condition struct {
	Field string
	Op    Op
	Value any   // string, float64, bool, or nil for Exists
	List  []any // populated for In/NotIn
}

// Filter is a tree of AND/OR over leaf Conditions.
type Filter struct {
	condition *Condition
	and       []Filter
	or        []Filter
}

// Parse parses a filter expression string into a Filter tree.
func Parse(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Filter{}, amerrors.InvalidFilterError("empty filter expression", nil)
	}

	orParts := splitTopLevel(s, " OR ")
	if len(orParts) > 1 {
		var branches []Filter
		for _, part := range orParts {
			f, err := parseAnd(part)
			if err != nil {
				return Filter{}, err
			}
			branches = append(branches, f)
		}
		return Filter{or: branches}, nil
	}

	return parseAnd(s)
}

func parseAnd(s string) (Filter, error) {
	parts := splitAndLevel(s)
	if len(parts) > 1 {
		var branches []Filter
		for _, part := range parts {
			f, err := parseSingle(strings.TrimSpace(part))
			if err != nil {
				return Filter{}, err
			}
			branches = append(branches, f)
		}
		return Filter{and: branches}, nil
	}
	return parseSingle(strings.TrimSpace(s))
}

// splitAndLevel splits on " AND " or on top-level commas (commas inside
// [...] are not separators), per the grammar's `and := single ((' AND ' |
// ',') single)*` rule.
func splitAndLevel(s string) []string {
	if parts := splitTopLevel(s, " AND "); len(parts) > 1 {
		return parts
	}
	return splitTopLevelComma(s)
}

func splitTopLevel(s, sep string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		}
		if depth == 0 && strings.HasPrefix(s[i:], sep) {
			parts = append(parts, s[start:i])
			i += len(sep) - 1
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func splitTopLevelComma(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func parseSingle(s string) (Filter, error) {
	if s == "" {
		return Filter{}, amerrors.InvalidFilterError("empty filter clause", nil)
	}

	// Trailing '?' means "field exists".
	if strings.HasSuffix(s, "?") {
		field := strings.TrimSuffix(s, "?")
		return leaf(Condition{Field: field, Op: OpExists}), nil
	}

	if field, list, ok := cutListOp(s, " not_in "); ok {
		return leaf(Condition{Field: field, Op: OpNotIn, List: list}), nil
	}
	if field, list, ok := cutListOp(s, " in "); ok {
		return leaf(Condition{Field: field, Op: OpIn, List: list}), nil
	}

	if field, val, ok := strings.Cut(s, "~"); ok {
		return leaf(Condition{Field: field, Op: OpContains, Value: coerceValue(val)}), nil
	}
	// '^' start-of-pattern, but guard against '>=' containing no '^' anyway;
	// still keep explicit ordering so a future operator addition can't collide.
	if field, val, ok := strings.Cut(s, "^"); ok {
		return leaf(Condition{Field: field, Op: OpStartsWith, Value: coerceValue(val)}), nil
	}
	if field, val, ok := strings.Cut(s, "$"); ok {
		return leaf(Condition{Field: field, Op: OpEndsWith, Value: coerceValue(val)}), nil
	}

	for _, opPair := range []struct {
		sym string
		op  Op
	}{
		{"!=", OpNe},
		{">=", OpGte},
		{"<=", OpLte},
		{">", OpGt},
		{"<", OpLt},
		{"=", OpEq},
		{":", OpEq},
	} {
		if field, val, ok := strings.Cut(s, opPair.sym); ok {
			return leaf(parseValueWithGlob(field, val, opPair.op)), nil
		}
	}

	return Filter{}, amerrors.InvalidFilterError("could not parse filter clause: "+s, nil)
}

func leaf(c Condition) Filter { return Filter{condition: &c} }

func cutListOp(s, sep string) (field string, list []any, ok bool) {
	field, rest, found := strings.Cut(s, sep)
	if !found {
		return "", nil, false
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "[") || !strings.HasSuffix(rest, "]") {
		return "", nil, false
	}
	inner := rest[1 : len(rest)-1]
	var values []any
	if strings.TrimSpace(inner) != "" {
		for _, item := range strings.Split(inner, ",") {
			values = append(values, coerceValue(strings.TrimSpace(item)))
		}
	}
	return field, values, true
}

// parseValueWithGlob applies glob-pattern detection to an equality-shaped
// value: *x* -> Contains, *x -> EndsWith, x* -> StartsWith, else the
// original operator.
func parseValueWithGlob(field, val string, op Op) Condition {
	if op == OpEq {
		hasPrefixStar := strings.HasPrefix(val, "*")
		hasSuffixStar := strings.HasSuffix(val, "*")
		switch {
		case hasPrefixStar && hasSuffixStar && len(val) >= 2:
			return Condition{Field: field, Op: OpContains, Value: val[1 : len(val)-1]}
		case hasPrefixStar:
			return Condition{Field: field, Op: OpEndsWith, Value: val[1:]}
		case hasSuffixStar:
			return Condition{Field: field, Op: OpStartsWith, Value: val[:len(val)-1]}
		}
	}
	return Condition{Field: field, Op: op, Value: coerceValue(val)}
}

// coerceValue auto-coerces a raw string value: integer, then float, then
// bool, else string.
func coerceValue(raw string) any {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return float64(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if raw == "true" {
		return true
	}
	if raw == "false" {
		return false
	}
	return raw
}

// Matches evaluates the filter against free-form JSON metadata.
func Matches(f Filter, metadata json.RawMessage) bool {
	var m map[string]any
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &m)
	}
	return matchesMap(f, m)
}

// MatchesMap evaluates the filter against an already-decoded metadata map,
// useful when the caller already has one (avoids a redundant unmarshal).
func MatchesMap(f Filter, metadata map[string]any) bool {
	return matchesMap(f, metadata)
}

func matchesMap(f Filter, m map[string]any) bool {
	if len(f.and) > 0 {
		for _, sub := range f.and {
			if !matchesMap(sub, m) {
				return false
			}
		}
		return true
	}
	if len(f.or) > 0 {
		for _, sub := range f.or {
			if matchesMap(sub, m) {
				return true
			}
		}
		return false
	}
	if f.condition == nil {
		return false
	}

	c := *f.condition
	val, found := getNestedValue(m, c.Field)

	switch c.Op {
	case OpExists:
		return found
	case OpNe:
		if !found {
			return true
		}
		return !valuesEqual(val, c.Value)
	case OpNotIn:
		if !found {
			return true
		}
		for _, item := range c.List {
			if valuesEqual(val, item) {
				return false
			}
		}
		return true
	}

	if !found {
		return false
	}

	switch c.Op {
	case OpEq:
		return valuesEqual(val, c.Value)
	case OpIn:
		for _, item := range c.List {
			if valuesEqual(val, item) {
				return true
			}
		}
		return false
	case OpGt:
		cmp, ok := compareValues(val, c.Value)
		return ok && cmp > 0
	case OpGte:
		cmp, ok := compareValues(val, c.Value)
		return ok && cmp >= 0
	case OpLt:
		cmp, ok := compareValues(val, c.Value)
		return ok && cmp < 0
	case OpLte:
		cmp, ok := compareValues(val, c.Value)
		return ok && cmp <= 0
	case OpContains:
		s, sv, ok := stringPair(val, c.Value)
		return ok && strings.Contains(s, sv)
	case OpStartsWith:
		s, sv, ok := stringPair(val, c.Value)
		return ok && strings.HasPrefix(s, sv)
	case OpEndsWith:
		s, sv, ok := stringPair(val, c.Value)
		return ok && strings.HasSuffix(s, sv)
	}

	return false
}

// getNestedValue resolves a dotted field path (a.b.c) through nested map[string]any.
func getNestedValue(m map[string]any, path string) (any, bool) {
	if m == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var cur any = m
	for _, p := range parts {
		asMap, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, exists := asMap[p]
		if !exists {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

const epsilon = 1e-9

func valuesEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return math.Abs(af-bf) < epsilon
	}

	as, aok := toString(a)
	bs, bok := toString(b)
	if aok && bok {
		return as == bs
	}

	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		return ab == bb
	}

	if a == nil && b == nil {
		return true
	}

	return false
}

// compareValues orders two values: numeric compare first, else lexicographic
// string compare.
func compareValues(a, b any) (int, bool) {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
	}

	as, aok := toString(a)
	bs, bok := toString(b)
	if aok && bok {
		return strings.Compare(as, bs), true
	}

	return 0, false
}

func stringPair(a, b any) (string, string, bool) {
	as, aok := toString(a)
	bs, bok := toString(b)
	return as, bs, aok && bok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
