// Package normalize holds the pure field normalizers shared by the parsers,
// the validator and the reconciler.
package normalize

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// Key lowercases a raw field name and drops everything that is not a
// letter or digit, so "Party Name", "party_name" and "PARTY-NAME" compare equal.
func Key(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Alias lists the accepted spellings of one canonical field, in priority order.
type Alias struct {
	Key   string
	Names []string
}

// AliasTable is the immutable alias configuration of one import type.
type AliasTable []Alias

// Names returns the aliases of a canonical key.
func (t AliasTable) Names(key string) []string {
	for _, a := range t {
		if a.Key == key {
			return a.Names
		}
	}
	return nil
}

// FindHeader returns the raw header matching the highest-priority alias.
// Headers and aliases are compared by their normalized keys.
func FindHeader(headers []string, aliases []string) (string, bool) {
	if len(aliases) == 0 || len(headers) == 0 {
		return "", false
	}
	byKey := make(map[string]string, len(headers))
	for _, h := range headers {
		k := Key(h)
		if _, dup := byKey[k]; !dup {
			byKey[k] = h
		}
	}
	for _, a := range aliases {
		if h, ok := byKey[Key(a)]; ok {
			return h, true
		}
	}
	return "", false
}

// HeaderMap maps canonical keys to the raw header names found in a file.
type HeaderMap map[string]string

// BuildHeaderMap resolves every canonical key of the table against the
// headers once, so rows can be read without repeating the alias search.
func BuildHeaderMap(headers []string, table AliasTable) HeaderMap {
	m := make(HeaderMap, len(table))
	for _, a := range table {
		if h, ok := FindHeader(headers, a.Names); ok {
			m[a.Key] = h
		}
	}
	return m
}

// Headers collects the sorted union of keys over all rows.
func Headers[R ~map[string]any](rows []R) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, row := range rows {
		for k := range row {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				out = append(out, k)
			}
		}
	}
	slices.Sort(out)
	return out
}

// Lookup finds a value in a single row by alias, for free-form records
// whose keys differ from row to row.
func Lookup[R ~map[string]any](row R, aliases []string) (any, bool) {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	h, ok := FindHeader(keys, aliases)
	if !ok {
		return nil, false
	}
	return row[h], true
}

// String renders a raw scalar as trimmed text.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
