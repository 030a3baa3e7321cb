// Package kvstore implements the Storage Kernel (spec.md §4.A): typed
// tables over a single-writer/multi-reader embedded key-value store,
// transactional read/write envs, and packed-key helpers.
//
// The backing store is badger/v4, an LSM-tree KV engine, not a
// memory-mapped B-tree — see SPEC_FULL.md §2 for why no buildable mmap
// B-tree binding exists in the retrieval corpus. The eleven tables named
// in spec.md §4.A are emulated faithfully: dup-sort adjacency tables use
// composite keys (logical key prefix ‖ dup discriminator) under a single
// badger keyspace, iterated with a prefix scan that returns dups in
// lexicographic order — the same "packed page from one seek" contract
// spec.md describes, implemented with badger's iterator instead of a
// native multi-value cursor.
package kvstore

// TableFlags mirrors the bitmask vocabulary erigon-lib's kv package uses
// to declare table layout (Default/ReverseKey/DupSort/IntegerKey/...).
// Only the flags the Storage Kernel's thirteen tables actually need are
// declared; the rest of erigon-lib's vocabulary has no table here to
// attach to (see SPEC_FULL.md §2).
type TableFlags uint

const (
	Default TableFlags = 0x00
	DupSort TableFlags = 0x04
)

// TableCfgItem describes one table's layout.
type TableCfgItem struct {
	Flags TableFlags
	// FixedDupValueSize is the exact byte length of a dup-sort table's
	// value, enforced on write. Zero for non-dup-sort tables.
	FixedDupValueSize int
}

// Table names, matching spec.md §4.A's table column verbatim.
const (
	TableNodes          = "nodes"
	TableEdges          = "edges"
	TableOutEdges       = "out_edges"
	TableInEdges        = "in_edges"
	TableVectorMeta     = "vector_meta"
	TableVectorHNSW     = "vector_hnsw"
	TableBM25Postings   = "bm25_postings"
	TableBM25TermDF     = "bm25_term_df"
	TableBM25DocLengths = "bm25_doc_lengths"
	TableBM25Meta       = "bm25_meta"
	TablePPRCache       = "ppr_cache"

	// TableSchemaUnique is a supplemented bookkeeping table (not named in
	// spec.md §4.A) backing the Graph Store's DUPLICATE_UNIQUE check
	// (SPEC_FULL.md §3, grounded on pkg/storage/schema.go's
	// SchemaManager). Keyed by label_hash‖field_hash‖value_hash.
	TableSchemaUnique = "schema_unique"

	// TableBM25DocText is a supplemented bookkeeping table storing each
	// indexed document's raw text, so Remove/re-Index can re-tokenize
	// and correctly decrement postings/df — the same role the reference
	// codebase's FulltextIndex.documents map plays in
	// pkg/search/fulltext_index.go's removeInternal.
	TableBM25DocText = "bm25_doc_text"
)

// TableCfg is the Storage Kernel's declared schema: which tables are
// dup-sort and, for those, the fixed dup value size. out_edges/in_edges
// carry edge_id‖other_id (16+16 = 32 bytes), exactly spec.md §4.A's
// "fixed 32-byte value" requirement.
var TableCfg = map[string]TableCfgItem{
	TableNodes:          {Flags: Default},
	TableEdges:          {Flags: Default},
	TableOutEdges:       {Flags: DupSort, FixedDupValueSize: 32},
	TableInEdges:        {Flags: DupSort, FixedDupValueSize: 32},
	TableVectorMeta:     {Flags: Default},
	TableVectorHNSW:     {Flags: Default},
	TableBM25Postings:   {Flags: Default},
	TableBM25TermDF:     {Flags: Default},
	TableBM25DocLengths: {Flags: Default},
	TableBM25Meta:       {Flags: Default},
	TablePPRCache:       {Flags: Default},
	TableSchemaUnique:   {Flags: Default},
	TableBM25DocText:    {Flags: Default},
}

// tablePrefixes maps each table name to its single-byte keyspace prefix,
// matching the reference codebase's prefixNode/prefixEdge/... convention
// (pkg/storage/badger.go) extended to the Storage Kernel's larger table
// set.
var tablePrefixes = map[string]byte{
	TableNodes:          0x01,
	TableEdges:          0x02,
	TableOutEdges:       0x03,
	TableInEdges:        0x04,
	TableVectorMeta:     0x05,
	TableVectorHNSW:     0x06,
	TableBM25Postings:   0x07,
	TableBM25TermDF:     0x08,
	TableBM25DocLengths: 0x09,
	TableBM25Meta:       0x0a,
	TablePPRCache:       0x0b,
	TableSchemaUnique:   0x0c,
	TableBM25DocText:    0x0d,
}

func tablePrefix(table string) byte {
	p, ok := tablePrefixes[table]
	if !ok {
		panic("kvstore: unknown table " + table)
	}
	return p
}
