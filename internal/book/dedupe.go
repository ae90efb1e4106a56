package book

import "strings"

// Dedupe collapses candidates that describe the same book, keeping the
// first occurrence of each identity. Output order preserves first-seen
// order, so local and higher-priority matches win ties.
func Dedupe(candidates []Book) []Book {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Book, 0, len(candidates))
	for _, c := range candidates {
		key := dedupeKey(c)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// dedupeKey is the identity used to reconcile records across sources:
// the normalized ISBN when present, otherwise title plus author list.
func dedupeKey(b Book) string {
	if n := b.NormalizedISBN(); n != "" {
		return strings.ToLower(n)
	}
	return strings.ToLower(b.Title + "|" + strings.Join(b.Authors, ","))
}
