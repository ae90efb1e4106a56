package book

import "strings"

// DefaultStopwords covers English and Spanish publisher, edition and
// connector words that show up on book covers but carry no search value.
// Deployments targeting other locales override the set via configuration.
var DefaultStopwords = []string{
	"the", "and", "for", "with", "from",
	"edition", "press", "publishing", "publisher", "publishers", "books",
	"por", "con", "para", "una", "los", "las", "del",
	"edición", "edicion", "editorial", "ediciones", "libro", "libros",
}

// Queries are capped at this many tokens; OCR output past that point is
// usually fragments of the back-cover blurb.
const maxQueryTokens = 8

// Normalizer cleans raw noisy text (OCR output, voice transcripts) into a
// compact search query.
type Normalizer struct {
	stopwords map[string]struct{}
}

// NewNormalizer builds a Normalizer with the given case-insensitive
// stopword set.
func NewNormalizer(stopwords []string) *Normalizer {
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		set[strings.ToLower(w)] = struct{}{}
	}
	return &Normalizer{stopwords: set}
}

// Normalize tokenizes rawText on whitespace, drops tokens of length <= 2
// and stopwords, and joins at most the first eight surviving tokens in
// their original order. Blank input yields an empty query, which callers
// treat as "no search performed".
func (n *Normalizer) Normalize(rawText string) string {
	kept := make([]string, 0, maxQueryTokens)
	for _, tok := range strings.Fields(rawText) {
		if len([]rune(tok)) <= 2 {
			continue
		}
		if _, ok := n.stopwords[strings.ToLower(tok)]; ok {
			continue
		}
		kept = append(kept, tok)
		if len(kept) == maxQueryTokens {
			break
		}
	}
	return strings.Join(kept, " ")
}
