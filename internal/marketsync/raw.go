package marketsync

import (
	"strconv"
	"strings"
)

// RawItem is one loosely-typed product record as discovered by an extractor.
// Marketplace payloads disagree on field names and value types, so access
// goes through probing helpers instead of a fixed struct.
type RawItem map[string]any

// Str returns the first non-empty string value among the given keys.
func (it RawItem) Str(keys ...string) string {
	for _, k := range keys {
		switch v := it[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// Num returns the first numeric value among the given keys. Numeric strings
// count: marketplaces freely switch between 299 and "299".
func (it RawItem) Num(keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := it[k].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// Strings collects string elements of a slice-valued field.
func (it RawItem) Strings(key string) []string {
	raw, ok := it[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Sub returns a nested object field as a RawItem.
func (it RawItem) Sub(key string) RawItem {
	if m, ok := it[key].(map[string]any); ok {
		return RawItem(m)
	}
	return nil
}

// ExternalID resolves the marketplace identifier for the item, probing the
// id fields each source is known to use. Empty string means unresolvable.
func (it RawItem) ExternalID() string {
	if id := it.Str("tid", "product_id", "external_id", "id"); id != "" {
		return id
	}
	// Shopee ids are numeric and must not pick up float formatting.
	if n, ok := it.Num("itemid", "item_id"); ok && n > 0 {
		return strconv.FormatInt(int64(n), 10)
	}
	if n, ok := it.Num("id"); ok && n > 0 {
		return strconv.FormatInt(int64(n), 10)
	}
	return ""
}

// DedupeByExternalID drops repeated discoveries of the same item, keeping the
// first occurrence. Extraction heuristics overlap, so duplicates are normal.
func DedupeByExternalID(items []RawItem) []RawItem {
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, it := range items {
		id := it.ExternalID()
		if id == "" {
			out = append(out, it)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, it)
	}
	return out
}
