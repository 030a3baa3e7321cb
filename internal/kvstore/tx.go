package kvstore

import (
	"bytes"

	"github.com/dgraph-io/badger/v4"

	"github.com/oneiron-dev/oneiron-helix/helixerr"
)

// Tx is a single read or write transaction borrowed from an Env. No Tx
// may outlive the Env that produced it, and no key/value slice read
// through a Tx may outlive the Tx (spec.md §9): copy anything that must
// survive past the enclosing View/Update call.
type Tx struct {
	btx      *badger.Txn
	writable bool
}

func fullKey(table string, key []byte) []byte {
	out := make([]byte, 0, 1+len(key))
	out = append(out, tablePrefix(table))
	out = append(out, key...)
	return out
}

// Get reads the value stored under key in table. Returns
// helixerr.NotFound if absent.
func (t *Tx) Get(table string, key []byte) ([]byte, error) {
	item, err := t.btx.Get(fullKey(table, key))
	if err == badger.ErrKeyNotFound {
		return nil, helixerr.New(helixerr.KindNotFound, table+": key not found")
	}
	if err != nil {
		return nil, must(err, "get "+table)
	}
	var out []byte
	err = item.Value(func(val []byte) error {
		out = append([]byte(nil), val...)
		return nil
	})
	if err != nil {
		return nil, must(err, "read value "+table)
	}
	return out, nil
}

// Has reports whether key exists in table without decoding its value.
func (t *Tx) Has(table string, key []byte) (bool, error) {
	_, err := t.btx.Get(fullKey(table, key))
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, must(err, "has "+table)
	}
	return true, nil
}

// Put writes value under key in table. Returns helixerr.WriteBusy-style
// errors only through the Env's Update lock, never here: by the time Put
// runs, the writer lock is already held.
func (t *Tx) Put(table string, key, value []byte) error {
	if !t.writable {
		return helixerr.New(helixerr.KindInvalidArgument, "put on read-only transaction")
	}
	if err := t.btx.Set(fullKey(table, key), value); err != nil {
		return must(err, "put "+table)
	}
	return nil
}

// Delete removes key from table. Deleting an absent key is a no-op.
func (t *Tx) Delete(table string, key []byte) error {
	if !t.writable {
		return helixerr.New(helixerr.KindInvalidArgument, "delete on read-only transaction")
	}
	if err := t.btx.Delete(fullKey(table, key)); err != nil {
		return must(err, "delete "+table)
	}
	return nil
}

// IteratePrefix walks every key in table whose suffix (the part after
// the table's own prefix byte) starts with prefix, in ascending key
// order, calling fn with the table-local key suffix and its value. Stops
// early if fn returns a non-nil error (ErrIterationStopped-style
// sentinel values propagate to the caller unchanged).
func (t *Tx) IteratePrefix(table string, prefix []byte, fn func(key, value []byte) error) error {
	full := fullKey(table, prefix)
	it := t.btx.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(full); it.ValidForPrefix(full); it.Next() {
		item := it.Item()
		k := item.KeyCopy(nil)[1:] // drop the table prefix byte
		var v []byte
		if err := item.Value(func(val []byte) error {
			v = append([]byte(nil), val...)
			return nil
		}); err != nil {
			return must(err, "iterate "+table)
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

// PutDup writes a dup-sort entry: logicalKey identifies the adjacency
// bucket (spec.md §4.A's from_id‖label_hash or to_id‖label_hash) and
// dupValue is the fixed-size tuple (edge_id‖other_id) stored under it.
// The composite on-disk key is logicalKey‖dupValue, so badger's own
// lexicographic key order gives ascending dup order within a bucket —
// the same ordering a native dup-sort cursor would return from one seek.
func (t *Tx) PutDup(table string, logicalKey, dupValue []byte) error {
	cfg, ok := TableCfg[table]
	if !ok || cfg.Flags&DupSort == 0 {
		return helixerr.New(helixerr.KindInvalidArgument, table+" is not a dup-sort table")
	}
	if cfg.FixedDupValueSize > 0 && len(dupValue) != cfg.FixedDupValueSize {
		return helixerr.New(helixerr.KindInvalidArgument, "dup value has wrong fixed size")
	}
	composite := append(append([]byte(nil), logicalKey...), dupValue...)
	return t.Put(table, composite, dupValue)
}

// DeleteDup removes one dup entry from a dup-sort bucket.
func (t *Tx) DeleteDup(table string, logicalKey, dupValue []byte) error {
	composite := append(append([]byte(nil), logicalKey...), dupValue...)
	return t.Delete(table, composite)
}

// SeekDups returns every dup value stored under logicalKey in a
// dup-sort table, in ascending order — the "single cursor seek returns
// a tightly packed page" contract of spec.md §4.A.
func (t *Tx) SeekDups(table string, logicalKey []byte) ([][]byte, error) {
	var out [][]byte
	err := t.IteratePrefix(table, logicalKey, func(key, value []byte) error {
		if !bytes.HasPrefix(key, logicalKey) {
			return nil
		}
		out = append(out, append([]byte(nil), value...))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAllDups removes every dup entry stored under logicalKey.
func (t *Tx) DeleteAllDups(table string, logicalKey []byte) error {
	dups, err := t.SeekDups(table, logicalKey)
	if err != nil {
		return err
	}
	for _, dv := range dups {
		if err := t.DeleteDup(table, logicalKey, dv); err != nil {
			return err
		}
	}
	return nil
}
