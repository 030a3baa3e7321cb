// Package fulltext implements the BM25 Index (spec.md §4.E): posting
// lists, document lengths, term document-frequency, incremental
// updates, and scored retrieval, over the Storage Kernel's
// bm25_postings/bm25_term_df/bm25_doc_lengths/bm25_meta tables.
//
// Adapted from the reference codebase's pkg/search/fulltext_index.go,
// with two deliberate deviations to match spec.md §3/§4.E exactly: no
// stop-word list (the reference codebase drops common words; the
// specification only drops tokens of length <= 2) and no prefix
// matching (the specification defines exact-term scoring only).
package fulltext

import (
	"strings"
	"unicode"
)

// Tokenize lowercases text, splits on non-alphanumeric runes, and drops
// tokens of length <= 2 (spec.md §3: "tokenization: lowercase, split on
// non-alphanumerics, drop tokens of length <= 2").
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}
