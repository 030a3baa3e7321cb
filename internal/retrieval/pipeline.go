package retrieval

import (
	"github.com/oneiron-dev/oneiron-helix/internal/codec"
	"github.com/oneiron-dev/oneiron-helix/internal/fulltext"
	"github.com/oneiron-dev/oneiron-helix/internal/kvstore"
	"github.com/oneiron-dev/oneiron-helix/internal/vectorindex"
)

// LabelOf resolves a document id's label, read from the Graph Store's
// node table. Passed through to the BM25 Index's label-during-
// accumulation filter.
type LabelOf func(codec.ID) (string, bool)

// Prefilter reports whether an id survives a caller-supplied predicate,
// applied before scoring rather than after (spec.md §4.E step 3,
// §4.D's trickle semantics).
type Prefilter func(codec.ID) bool

// Pipeline wires the Vector Index and BM25 Index into the three
// operators spec.md §4.F names.
type Pipeline struct {
	Vectors *vectorindex.Index
	Text    *fulltext.Index
}

// NewPipeline builds a Pipeline over an already-constructed vector and
// text index.
func NewPipeline(vectors *vectorindex.Index, text *fulltext.Index) *Pipeline {
	return &Pipeline{Vectors: vectors, Text: text}
}

// SearchV is a thin wrapper over the Vector Index (spec.md §4.D),
// trickling prefilter through neighbor expansion whenever one is given.
func (p *Pipeline) SearchV(query []float32, k int, label string, prefilter Prefilter) []vectorindex.Result {
	return p.Vectors.Search(query, vectorindex.SearchParams{
		K:       k,
		Label:   label,
		Filter:  prefilter,
		Trickle: prefilter != nil,
	})
}

// SearchBM25 is a thin wrapper over the BM25 Index (spec.md §4.E).
func (p *Pipeline) SearchBM25(tx *kvstore.Tx, queryText string, k int, label string, prefilter Prefilter, labelOf LabelOf) ([]fulltext.Hit, error) {
	return p.Text.Search(tx, queryText, label, k, prefilter, labelOf)
}

// SearchHybrid overfetches from both sources, fuses with RRF, dedupes
// by id keeping the first occurrence, and truncates to k (spec.md
// §4.F).
func (p *Pipeline) SearchHybrid(tx *kvstore.Tx, queryVec []float32, queryText string, k int, label string, prefilter Prefilter, labelOf LabelOf) ([]Fused, error) {
	kPrime := k
	if 2*k > kPrime {
		kPrime = 2 * k
	}

	vResults := p.SearchV(queryVec, kPrime, label, prefilter)
	bResults, err := p.SearchBM25(tx, queryText, kPrime, label, prefilter, labelOf)
	if err != nil {
		return nil, err
	}

	vIDs := make([]codec.ID, len(vResults))
	for i, r := range vResults {
		vIDs[i] = r.ID
	}
	bIDs := make([]codec.ID, len(bResults))
	for i, r := range bResults {
		bIDs[i] = r.ID
	}

	fused := Fuse([][]codec.ID{vIDs, bIDs}, defaultRRFK)
	if k > 0 && len(fused) > k {
		fused = fused[:k]
	}
	return fused, nil
}
