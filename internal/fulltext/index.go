package fulltext

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/oneiron-dev/oneiron-helix/helixerr"
	"github.com/oneiron-dev/oneiron-helix/internal/codec"
	"github.com/oneiron-dev/oneiron-helix/internal/kvstore"
)

// getOptional reads key from table, returning (nil, false, nil) instead
// of a NotFound error when absent — every BM25 lookup here treats a
// missing key as "zero", not a fault.
func getOptional(tx *kvstore.Tx, table string, key []byte) ([]byte, bool, error) {
	blob, err := tx.Get(table, key)
	if err != nil {
		if kind, ok := helixerr.Of(err); ok && kind == helixerr.KindNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return blob, true, nil
}

// metaKey is the single key bm25_meta is stored under: the table already
// scopes the keyspace, so no further discriminator is needed.
var metaKey = []byte("meta")

// Index scores documents with Okapi BM25 over postings persisted in the
// Storage Kernel (spec.md §4.E), adapted from the reference codebase's
// pkg/search/fulltext_index.go but re-expressed against kvstore
// transactions instead of an in-memory inverted index, since postings
// are naturally KV-shaped and spec.md §4.A already names their tables.
type Index struct {
	K1 float64
	B  float64
}

// New builds a BM25 Index with the given tuning constants (spec.md §4.E
// defaults: k1≈1.2, b≈0.75).
func New(k1, b float64) *Index {
	return &Index{K1: k1, B: b}
}

func termDocKey(termHash uint32, docID codec.ID) []byte {
	key := make([]byte, 4+16)
	binary.BigEndian.PutUint32(key[:4], termHash)
	copy(key[4:], docID.Bytes())
	return key
}

func termHashKey(termHash uint32) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, termHash)
	return key
}

func encodeU32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func decodeU32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func encodeU64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func decodeU64(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// meta tracks document count and total length, so avgdl (average
// document length, spec.md §4.E's normalization term) can be recomputed
// without scanning every document.
type meta struct {
	nDocs       uint32
	totalLength uint64
}

func (ix *Index) readMeta(tx *kvstore.Tx) (meta, error) {
	blob, ok, err := getOptional(tx, kvstore.TableBM25Meta, metaKey)
	if err != nil {
		return meta{}, err
	}
	if !ok {
		return meta{}, nil
	}
	return meta{nDocs: decodeU32(blob[:4]), totalLength: decodeU64(blob[4:12])}, nil
}

func (ix *Index) writeMeta(tx *kvstore.Tx, m meta) error {
	buf := append(encodeU32(m.nDocs), encodeU64(m.totalLength)...)
	return tx.Put(kvstore.TableBM25Meta, metaKey, buf)
}

func (ix *Index) avgdl(m meta) float64 {
	if m.nDocs == 0 {
		return 0
	}
	return float64(m.totalLength) / float64(m.nDocs)
}

// Index tokenizes text and folds its terms into the postings, term
// document-frequency, document-length, and meta tables. A document
// already indexed under docID is removed first, so re-indexing (e.g. on
// an updated node property) never double-counts.
func (ix *Index) Index(tx *kvstore.Tx, docID codec.ID, text string) error {
	if err := ix.Remove(tx, docID); err != nil {
		return err
	}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	freq := make(map[string]uint32, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}

	for term, f := range freq {
		termHash := codec.LabelHash(term)
		if err := tx.Put(kvstore.TableBM25Postings, termDocKey(termHash, docID), encodeU32(f)); err != nil {
			return err
		}
		dfBlob, ok, err := getOptional(tx, kvstore.TableBM25TermDF, termHashKey(termHash))
		if err != nil {
			return err
		}
		df := uint32(0)
		if ok {
			df = decodeU32(dfBlob)
		}
		if err := tx.Put(kvstore.TableBM25TermDF, termHashKey(termHash), encodeU32(df+1)); err != nil {
			return err
		}
	}

	if err := tx.Put(kvstore.TableBM25DocLengths, docID.Bytes(), encodeU32(uint32(len(tokens)))); err != nil {
		return err
	}
	if err := tx.Put(kvstore.TableBM25DocText, docID.Bytes(), []byte(text)); err != nil {
		return err
	}

	m, err := ix.readMeta(tx)
	if err != nil {
		return err
	}
	m.nDocs++
	m.totalLength += uint64(len(tokens))
	return ix.writeMeta(tx, m)
}

// Remove undoes a prior Index call for docID, decrementing df and
// meta bookkeeping. A no-op if docID was never indexed.
func (ix *Index) Remove(tx *kvstore.Tx, docID codec.ID) error {
	textBlob, ok, err := getOptional(tx, kvstore.TableBM25DocText, docID.Bytes())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	text := string(textBlob)

	lenBlob, ok, err := getOptional(tx, kvstore.TableBM25DocLengths, docID.Bytes())
	if err != nil {
		return err
	}
	docLen := uint64(0)
	if ok {
		docLen = uint64(decodeU32(lenBlob))
	}

	tokens := Tokenize(text)
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		seen[t] = true

		termHash := codec.LabelHash(t)
		if err := tx.Delete(kvstore.TableBM25Postings, termDocKey(termHash, docID)); err != nil {
			return err
		}
		dfBlob, ok, err := getOptional(tx, kvstore.TableBM25TermDF, termHashKey(termHash))
		if err != nil {
			return err
		}
		if ok {
			df := decodeU32(dfBlob)
			if df <= 1 {
				if err := tx.Delete(kvstore.TableBM25TermDF, termHashKey(termHash)); err != nil {
					return err
				}
			} else {
				if err := tx.Put(kvstore.TableBM25TermDF, termHashKey(termHash), encodeU32(df-1)); err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Delete(kvstore.TableBM25DocLengths, docID.Bytes()); err != nil {
		return err
	}
	if err := tx.Delete(kvstore.TableBM25DocText, docID.Bytes()); err != nil {
		return err
	}

	m, err := ix.readMeta(tx)
	if err != nil {
		return err
	}
	if m.nDocs > 0 {
		m.nDocs--
	}
	if m.totalLength >= docLen {
		m.totalLength -= docLen
	}
	return ix.writeMeta(tx, m)
}

// Hit is one scored document.
type Hit struct {
	ID    codec.ID
	Score float64
}

// Search implements spec.md §4.E's literal Okapi BM25 accumulation:
// Σ IDF(t)·(f·(k1+1))/(f+k1·(1−b+b·dl/avgdl)), applying prefilter
// before accumulating a posting's contribution (not after scoring) and
// filtering by label during accumulation via labelOf — a node-table
// lookup, not a redundant label copy inside the fulltext index.
func (ix *Index) Search(
	tx *kvstore.Tx,
	queryText string,
	label string,
	limit int,
	prefilter func(codec.ID) bool,
	labelOf func(codec.ID) (string, bool),
) ([]Hit, error) {
	m, err := ix.readMeta(tx)
	if err != nil {
		return nil, err
	}
	if m.nDocs == 0 {
		return nil, nil
	}
	avgdl := ix.avgdl(m)

	terms := uniqueTerms(Tokenize(queryText))
	if len(terms) == 0 {
		return nil, nil
	}

	scores := make(map[codec.ID]float64)
	docLenCache := make(map[codec.ID]uint64)

	for _, term := range terms {
		termHash := codec.LabelHash(term)

		dfBlob, ok, err := getOptional(tx, kvstore.TableBM25TermDF, termHashKey(termHash))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		df := decodeU32(dfBlob)
		if df == 0 {
			continue
		}
		idf := idfOf(float64(m.nDocs), float64(df))

		err = tx.IteratePrefix(kvstore.TableBM25Postings, termHashKey(termHash), func(key, value []byte) error {
			if len(key) < 20 {
				return nil
			}
			docID := codec.IDFromBytes(key[4:20])

			if prefilter != nil && !prefilter(docID) {
				return nil
			}
			if label != "" {
				l, ok := labelOf(docID)
				if !ok || l != label {
					return nil
				}
			}

			dl, cached := docLenCache[docID]
			if !cached {
				lenBlob, ok, err := getOptional(tx, kvstore.TableBM25DocLengths, docID.Bytes())
				if err != nil {
					return err
				}
				if ok {
					dl = uint64(decodeU32(lenBlob))
				}
				docLenCache[docID] = dl
			}

			freq := float64(decodeU32(value))
			denom := freq + ix.K1*(1-ix.B+ix.B*float64(dl)/avgdl)
			if denom == 0 {
				return nil
			}
			scores[docID] += idf * (freq * (ix.K1 + 1)) / denom
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, Hit{ID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID.String() < hits[j].ID.String()
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func idfOf(n, df float64) float64 {
	v := 1 + (n-df+0.5)/(df+0.5)
	if v < 1 {
		v = 1
	}
	return math.Log(v)
}

func uniqueTerms(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
