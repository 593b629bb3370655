package team

import (
	"strings"
	"unicode"
)

// Resolver maps free-form labels onto a fixed roster.
// The candidate keys are computed once; Resolve is safe for concurrent use.
type Resolver struct {
	records []Record
	keys    [][]string
}

// NewResolver builds a resolver over records. A nil slice means KBO.
func NewResolver(records []Record) *Resolver {
	if records == nil {
		records = KBO
	}
	r := &Resolver{
		records: records,
		keys:    make([][]string, len(records)),
	}
	for i, rec := range records {
		r.keys[i] = candidateKeys(rec)
	}
	return r
}

// Resolve returns the ID of the first record matching label.
func (r *Resolver) Resolve(label string) (string, bool) {
	key := Normalize(label)
	if key == "" {
		return "", false
	}
	singular := ""
	if strings.HasSuffix(key, "s") {
		singular = strings.TrimSuffix(key, "s")
	}

	for i, cands := range r.keys {
		for _, c := range cands {
			if c == key ||
				(singular != "" && c == singular) ||
				strings.HasPrefix(key, c) ||
				strings.HasSuffix(key, c) {
				return r.records[i].ID, true
			}
		}
	}
	return "", false
}

// ResolveOr resolves label, then tries each fallback in order, then DefaultID.
// Fallbacks are resolved too, so callers may pass IDs or names.
func (r *Resolver) ResolveOr(label string, fallbacks ...string) string {
	if id, ok := r.Resolve(label); ok {
		return id
	}
	for _, fb := range fallbacks {
		if id, ok := r.Resolve(fb); ok {
			return id
		}
	}
	return DefaultID
}

// Record returns the roster entry for id.
func (r *Resolver) Record(id string) (Record, bool) {
	for _, rec := range r.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return Record{}, false
}

// Normalize lower-cases s and keeps only letters, digits and underscores.
// Non-Latin letters (Hangul etc.) survive, so Korean labels still match.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func candidateKeys(rec Record) []string {
	raw := []string{
		rec.ID,
		rec.DisplayName,
		rec.ShortName,
		strings.Join(strings.Fields(rec.DisplayName), ""),
		strings.Join(strings.Fields(rec.ShortName), ""),
	}
	raw = append(raw, rec.Aliases...)

	seen := make(map[string]bool, len(raw))
	keys := make([]string, 0, len(raw))
	for _, s := range raw {
		k := Normalize(s)
		// An empty key would prefix-match everything.
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}
