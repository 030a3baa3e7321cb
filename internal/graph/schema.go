// Schema/constraint management, adapted from the reference codebase's
// pkg/storage/schema.go SchemaManager: declared per-label unique
// constraints back add_node's DUPLICATE_UNIQUE check (spec.md §4.C).
package graph

import (
	"fmt"
	"sync"

	"github.com/oneiron-dev/oneiron-helix/helixerr"
	"github.com/oneiron-dev/oneiron-helix/internal/codec"
	"github.com/oneiron-dev/oneiron-helix/internal/kvstore"
)

// UniqueConstraint declares that a (label, property) pair must be
// unique across all nodes carrying that label.
type UniqueConstraint struct {
	Label    string
	Property string
}

// SchemaManager tracks declared constraints in memory. It is safe for
// concurrent use; the persisted uniqueness bookkeeping itself lives in
// kvstore.TableSchemaUnique so it survives restarts even though the
// constraint declarations here do not (declarations are expected to be
// re-issued by the embedding application at startup, mirroring
// pkg/storage/schema.go's NewSchemaManager contract).
type SchemaManager struct {
	mu          sync.RWMutex
	uniqueByLbl map[string][]string // label -> property names
}

// NewSchemaManager returns an empty constraint set.
func NewSchemaManager() *SchemaManager {
	return &SchemaManager{uniqueByLbl: make(map[string][]string)}
}

// DeclareUnique registers a unique constraint. Idempotent.
func (s *SchemaManager) DeclareUnique(c UniqueConstraint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.uniqueByLbl[c.Label] {
		if p == c.Property {
			return
		}
	}
	s.uniqueByLbl[c.Label] = append(s.uniqueByLbl[c.Label], c.Property)
}

// uniqueProperties returns the properties declared unique for a label.
func (s *SchemaManager) uniqueProperties(label string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.uniqueByLbl[label]...)
}

// uniqueIndexKey builds the kvstore.TableSchemaUnique key for one
// (label, property, value) triple: label_hash(4) ‖ field_hash(4) ‖
// value_hash(4).
func uniqueIndexKey(label, property string, value any) []byte {
	key := make([]byte, 0, 12)
	key = append(key, codec.LabelHashBytes(label)...)
	key = append(key, codec.LabelHashBytes(property)...)
	key = append(key, codec.LabelHashBytes(fmt.Sprintf("%v", value))...)
	return key
}

// checkAndReserveUnique verifies every declared-unique property on node
// (label, props) is not already taken, then reserves it for nodeID. All
// within the same write transaction, so the check-then-reserve is
// atomic with the rest of add_node's writes. Returns a
// helixerr.DuplicateUnique-kind error on the first conflict found.
func (s *SchemaManager) checkAndReserveUnique(tx *kvstore.Tx, label string, props map[string]any, nodeID codec.ID) error {
	props_ := s.uniqueProperties(label)
	if len(props_) == 0 {
		return nil
	}

	keys := make([][]byte, 0, len(props_))
	for _, prop := range props_ {
		val, ok := props[prop]
		if !ok {
			continue
		}
		key := uniqueIndexKey(label, prop, val)
		exists, err := tx.Has(kvstore.TableSchemaUnique, key)
		if err != nil {
			return err
		}
		if exists {
			return helixerr.New(helixerr.KindDuplicateUnique,
				fmt.Sprintf("label %q property %q value %v already exists", label, prop, val))
		}
		keys = append(keys, key)
	}

	for _, key := range keys {
		if err := tx.Put(kvstore.TableSchemaUnique, key, nodeID.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// releaseUnique removes a node's unique-index reservations, called when
// dropping a node so the values become available again.
func (s *SchemaManager) releaseUnique(tx *kvstore.Tx, label string, props map[string]any) error {
	for _, prop := range s.uniqueProperties(label) {
		val, ok := props[prop]
		if !ok {
			continue
		}
		key := uniqueIndexKey(label, prop, val)
		if err := tx.Delete(kvstore.TableSchemaUnique, key); err != nil {
			return err
		}
	}
	return nil
}
