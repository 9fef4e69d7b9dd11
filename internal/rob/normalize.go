package rob

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// foldCase applies Unicode case folding. A Caser is stateful, so one is built
// per call.
func foldCase(s string) string { return cases.Fold().String(s) }

// MapLabel maps free judgment text onto the normalized scale. Rules are
// checked in order and the first match wins, so text containing both "yes"
// and "no" resolves to Low.
func MapLabel(text string) Label {
	j := foldCase(text)
	switch {
	case strings.Contains(j, "yes") || strings.Contains(j, "low"):
		return Low
	case strings.Contains(j, "no") || strings.Contains(j, "high"):
		return High
	case strings.Contains(j, "some"):
		return SomeConcerns
	default:
		return NA
	}
}

// NormalizeJudgment returns the normalized label for domain d of a decoded
// response object. A missing key or a non-object value yields N/A; a missing
// judgment field is read as the literal "N/A".
func NormalizeJudgment(obj map[string]any, d Domain) Label {
	a, ok := assess(obj, d)
	if !ok {
		return NA
	}
	return a.Judgment
}

// assess extracts one domain's assessment. ok is false when the domain key is
// absent or does not hold an object.
func assess(obj map[string]any, d Domain) (Assessment, bool) {
	v, present := obj[string(d)]
	if !present {
		return Assessment{Judgment: NA}, false
	}
	fields, isObj := v.(map[string]any)
	if !isObj {
		return Assessment{Judgment: NA}, false
	}
	raw := "N/A"
	if s, found := lookupString(fields, "judgment"); found {
		raw = s
	}
	support, _ := lookupString(fields, "support")
	return Assessment{Judgment: MapLabel(raw), Raw: raw, Support: support}, true
}

// lookupString finds a string field by case-insensitive name. An exact match
// wins; otherwise the first folded match in key order is used. Non-string
// values count as absent.
func lookupString(fields map[string]any, name string) (string, bool) {
	if v, ok := fields[name]; ok {
		s, isStr := v.(string)
		return s, isStr
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	want := foldCase(name)
	for _, k := range keys {
		if foldCase(k) != want {
			continue
		}
		s, isStr := fields[k].(string)
		return s, isStr
	}
	return "", false
}
