package marketsync

import (
	"encoding/json"
	"strconv"
	"strings"
)

// itemKeyPaths are the locations marketplace listing responses are known to
// bury their product arrays under, in probe order.
var itemKeyPaths = []string{
	"items",
	"data.items",
	"data.sections.0.data.item",
	"products",
	"data.products",
	"result.items",
	"result.data",
}

// ExtractItems locates the product-bearing array inside a raw listing payload
// and returns its records. A payload with no recognizable array yields nil,
// not an error: the caller treats it as a failed attempt and moves on.
func ExtractItems(payload []byte) []RawItem {
	var root any
	if err := json.Unmarshal(payload, &root); err != nil {
		return nil
	}

	// Some endpoints return the array directly.
	if arr, ok := root.([]any); ok {
		return collectItems(arr)
	}

	for _, path := range itemKeyPaths {
		if arr, ok := dig(root, path).([]any); ok {
			if items := collectItems(arr); len(items) > 0 {
				return items
			}
		}
	}
	return nil
}

// collectItems converts array elements to RawItems, unwrapping the envelope
// objects newer Shopee responses use.
func collectItems(arr []any) []RawItem {
	items := make([]RawItem, 0, len(arr))
	for _, el := range arr {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		item := RawItem(obj)
		for _, wrapper := range []string{"item_basic", "item"} {
			if inner := item.Sub(wrapper); inner != nil {
				item = inner
				break
			}
		}
		items = append(items, item)
	}
	return items
}

// dig walks a dot-separated path through decoded JSON. Numeric segments index
// arrays.
func dig(root any, path string) any {
	cur := root
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			cur = node[seg]
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			cur = node[idx]
		default:
			return nil
		}
	}
	return cur
}

// ExtractScriptItems scans inline script text for a JSON object or array that
// mentions the source's marker keys, then runs the regular extraction over it.
// Marketplaces embed their initial listing state this way, with no stable
// schema worth pinning down.
func ExtractScriptItems(script string, keyHints []string) []RawItem {
	if !containsAny(script, keyHints) {
		return nil
	}
	for _, blob := range jsonBlobs(script) {
		if !containsAny(blob, keyHints) {
			continue
		}
		if items := ExtractItems([]byte(blob)); len(items) > 0 {
			return items
		}
	}
	return nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// jsonBlobs returns balanced {...} and [...] spans found in script text,
// longest candidates first. Bounded to keep pathological pages cheap.
func jsonBlobs(script string) []string {
	const maxBlobs = 8
	var blobs []string
	for i := 0; i < len(script) && len(blobs) < maxBlobs; i++ {
		open := script[i]
		if open != '{' && open != '[' {
			continue
		}
		end := matchBalanced(script, i)
		if end < 0 {
			continue
		}
		span := script[i : end+1]
		if len(span) > 2 && json.Valid([]byte(span)) {
			blobs = append(blobs, span)
			i = end
		}
	}
	return blobs
}

// maxBlobSpan bounds the bytes scanned per blob candidate. Listing state
// fits well under this; without the bound a page stuffed with balanced
// non-JSON braces makes the candidate scan quadratic.
const maxBlobSpan = 1 << 20

// matchBalanced finds the index of the bracket closing script[start],
// honoring string literals and escapes. Returns -1 when unbalanced or when
// the span exceeds maxBlobSpan.
func matchBalanced(script string, start int) int {
	open := script[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}
	end := len(script)
	if start+maxBlobSpan < end {
		end = start + maxBlobSpan
	}
	depth := 0
	inString := false
	for i := start; i < end; i++ {
		c := script[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
