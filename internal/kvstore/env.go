package kvstore

import (
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/oneiron-dev/oneiron-helix/helixerr"
)

// Options configures the Storage Kernel's backing env, mirroring the
// reference codebase's BadgerOptions (pkg/storage/badger.go).
type Options struct {
	// DataDir is the root path for the store. Empty (with InMemory) runs
	// entirely in RAM, matching the "db_dir" config option in spec.md §6.
	DataDir string
	// InMemory runs the store in memory-only mode, the default test
	// fixture throughout this module.
	InMemory bool
	// SyncWrites forces fsync after each write transaction commit.
	SyncWrites bool
	// NonBlockingWrites makes Update return WRITE_BUSY immediately if a
	// writer is already active, instead of blocking for the writer lock
	// (spec.md §5 "depending on the mode selected at open time").
	NonBlockingWrites bool
}

// Env is the Storage Kernel's environment handle: one badger.DB plus the
// single-writer lock spec.md §5 requires. An Env's lifetime must
// strictly contain every Tx, Cursor, and arena-borrowed key/value slice
// derived from it (spec.md §9's memory-map lifetime discipline) — a
// violation is a program bug, not a typed error.
type Env struct {
	db         *badger.DB
	writerLock sync.Mutex
	nonBlock   bool
}

// Open creates or opens a Storage Kernel environment at opts.DataDir (or
// in memory if opts.InMemory).
func Open(opts Options) (*Env, error) {
	bo := badger.DefaultOptions(opts.DataDir)
	if opts.InMemory {
		bo = bo.WithInMemory(true)
	}
	if opts.SyncWrites {
		bo = bo.WithSyncWrites(true)
	}
	bo = bo.WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20)

	db, err := badger.Open(bo)
	if err != nil {
		return nil, helixerr.Wrap(helixerr.KindStorageFault, "open storage kernel", err)
	}
	return &Env{db: db, nonBlock: opts.NonBlockingWrites}, nil
}

// Close releases the backing db. The caller must ensure no Tx or
// iterator derived from the Env is still in use.
func (e *Env) Close() error {
	if err := e.db.Close(); err != nil {
		return helixerr.Wrap(helixerr.KindStorageFault, "close storage kernel", err)
	}
	return nil
}

// View runs fn against a read-only snapshot fixed at the moment View is
// called (spec.md §5: "readers see a consistent snapshot fixed at
// begin_read"). Multiple Views may run concurrently.
func (e *Env) View(fn func(*Tx) error) error {
	return e.db.View(func(btx *badger.Txn) error {
		tx := &Tx{btx: btx, writable: false}
		return fn(tx)
	})
}

// Update runs fn inside a single write transaction. Operations within fn
// commit atomically in program order (spec.md §5); across calls to
// Update, the Env's writer lock enforces the single-writer model.
func (e *Env) Update(fn func(*Tx) error) error {
	if e.nonBlock {
		if !e.writerLock.TryLock() {
			return helixerr.New(helixerr.KindWriteBusy, "writer already active")
		}
	} else {
		e.writerLock.Lock()
	}
	defer e.writerLock.Unlock()

	err := e.db.Update(func(btx *badger.Txn) error {
		tx := &Tx{btx: btx, writable: true}
		return fn(tx)
	})
	if err != nil {
		if _, ok := helixerr.Of(err); ok {
			return err
		}
		return helixerr.Wrap(helixerr.KindStorageFault, "write transaction failed", err)
	}
	return nil
}

// must is a small helper for call sites that want to convert a raw
// badger error into the engine's storage-fault kind without obscuring a
// helixerr.Error already produced deeper in the call stack.
func must(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := helixerr.Of(err); ok {
		return err
	}
	return helixerr.Wrap(helixerr.KindStorageFault, msg, err)
}
