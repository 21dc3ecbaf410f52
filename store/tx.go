package store

import (
	"github.com/cockroachdb/errors"
)

// Tx stages writes against a Store. It is only valid inside the Update call
// that created it.
type Tx struct {
	base     *Store
	content  map[int64]string
	mappings map[string]Ref

	maxKey    int64
	maxKnown  bool
	hasMaxKey bool
}

func newTx(s *Store) *Tx {
	return &Tx{
		base:     s,
		content:  make(map[int64]string),
		mappings: make(map[string]Ref),
	}
}

// Content returns the staged or committed value for key
func (tx *Tx) Content(key int64) (string, bool) {
	if v, ok := tx.content[key]; ok {
		return v, true
	}
	v, ok := tx.base.content[key]
	return v, ok
}

// HasContent reports whether key exists in the Content Table
func (tx *Tx) HasContent(key int64) bool {
	_, ok := tx.Content(key)
	return ok
}

// Mapping returns the staged or committed reference for slot
func (tx *Tx) Mapping(slot string) (Ref, bool) {
	if r, ok := tx.mappings[slot]; ok {
		return r, true
	}
	r, ok := tx.base.mappings[slot]
	return r, ok
}

// HasSlot reports whether slot exists in the Mapping Table
func (tx *Tx) HasSlot(slot string) bool {
	_, ok := tx.Mapping(slot)
	return ok
}

// MaxContentKey returns the largest content key, staged writes included.
// ok is false when the Content Table is empty.
func (tx *Tx) MaxContentKey() (max int64, ok bool) {
	if !tx.maxKnown {
		for k := range tx.base.content {
			tx.observeKey(k)
		}
		for k := range tx.content {
			tx.observeKey(k)
		}
		tx.maxKnown = true
	}
	return tx.maxKey, tx.hasMaxKey
}

func (tx *Tx) observeKey(k int64) {
	if !tx.hasMaxKey || k > tx.maxKey {
		tx.maxKey = k
		tx.hasMaxKey = true
	}
}

// CheckContent validates a Content Table write without staging it
func (tx *Tx) CheckContent(key int64, value string, overwrite bool) (WriteOutcome, error) {
	if key < 0 {
		return 0, errors.Newf("content key %d is negative", key)
	}
	existing, ok := tx.Content(key)
	switch {
	case !ok:
		return Inserted, nil
	case existing == value:
		return Unchanged, nil
	case !overwrite:
		return 0, errors.Wrapf(ErrKeyConflict, "content key %d holds %q, refusing %q", key, existing, value)
	default:
		return Replaced, nil
	}
}

// SetContent validates and stages a Content Table write
func (tx *Tx) SetContent(key int64, value string, overwrite bool) (WriteOutcome, error) {
	outcome, err := tx.CheckContent(key, value, overwrite)
	if err != nil {
		return 0, err
	}
	if outcome != Unchanged {
		tx.content[key] = value
		if tx.maxKnown {
			tx.observeKey(key)
		}
	}
	return outcome, nil
}

// CheckMapping validates a Mapping Table write without staging it. Keys in
// pending count as present; they are content keys the caller is about to
// write in the same record.
func (tx *Tx) CheckMapping(slot string, ref Ref, overwrite bool, pending ...int64) (WriteOutcome, error) {
	if slot == "" {
		return 0, errors.New("slot key is empty")
	}
	if ref.IsZero() {
		return 0, errors.Newf("slot %q has an empty reference", slot)
	}
	for _, key := range ref.keys {
		if tx.HasContent(key) || contains(pending, key) {
			continue
		}
		return 0, errors.Wrapf(ErrDanglingReference, "slot %q references missing content key %d", slot, key)
	}

	existing, ok := tx.Mapping(slot)
	switch {
	case !ok:
		return Inserted, nil
	case existing.Equal(ref):
		return Unchanged, nil
	case !overwrite:
		return 0, errors.Wrapf(ErrKeyConflict, "slot %q holds %s, refusing %s", slot, existing, ref)
	default:
		return Replaced, nil
	}
}

// SetMapping validates and stages a Mapping Table write
func (tx *Tx) SetMapping(slot string, ref Ref, overwrite bool) (WriteOutcome, error) {
	outcome, err := tx.CheckMapping(slot, ref, overwrite)
	if err != nil {
		return 0, err
	}
	if outcome != Unchanged {
		tx.mappings[slot] = Ref{keys: ref.Keys(), list: ref.list}
	}
	return outcome, nil
}

func (tx *Tx) commit() {
	for k, v := range tx.content {
		tx.base.content[k] = v
	}
	for k, v := range tx.mappings {
		tx.base.mappings[k] = v
	}
}

func contains(keys []int64, key int64) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
