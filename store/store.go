// Package store holds the two co-indexed tables a mapping session populates:
// the Content Table (integer key to content value) and the Mapping Table
// (slot key to one or more content keys).
//
// Writes happen only inside Update, which serializes writers and commits or
// discards the staged changes as one unit. Every Mapping Table write is
// checked against the Content Table so no committed state ever holds a
// dangling reference.
//
// Update is the write path of the mapping engine. Other callers use it only
// to seed a store before handing it to an engine; sessions expose the tables
// through Reader.
package store

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotFound is returned by Get for an absent content key
	ErrNotFound = errors.New("content key not found")
	// ErrKeyConflict is returned when a write would replace a differing value
	// while overwriting is disabled
	ErrKeyConflict = errors.New("key conflict")
	// ErrDanglingReference is returned when a mapping points at a content key
	// that does not exist
	ErrDanglingReference = errors.New("dangling reference")
	// ErrInvalidSnapshot is returned when a snapshot violates the table invariants
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// WriteOutcome describes what a successful write did
type WriteOutcome int

const (
	// Inserted means the key did not exist before
	Inserted WriteOutcome = iota
	// Unchanged means the key already held the identical value
	Unchanged
	// Replaced means a differing value was overwritten
	Replaced
)

func (o WriteOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Unchanged:
		return "unchanged"
	case Replaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Reader is the read-only view handed to presentation collaborators
type Reader interface {
	// Get returns the content value for a key or ErrNotFound
	Get(key int64) (string, error)
	// Mapping returns the reference stored under a slot key
	Mapping(slot string) (Ref, bool)
	// Resolve returns the content values a slot points to, in reference order
	Resolve(slot string) ([]string, error)
	// ContentKeys returns the Content Table keys in ascending order
	ContentKeys() []int64
	// SlotKeys returns the Mapping Table keys in ascending order
	SlotKeys() []string
	// Snapshot returns a copy of both tables
	Snapshot() *Snapshot
}

// Store owns the Content Table and the Mapping Table
type Store struct {
	mu       sync.RWMutex
	content  map[int64]string
	mappings map[string]Ref
}

var _ Reader = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		content:  make(map[int64]string),
		mappings: make(map[string]Ref),
	}
}

// Update runs fn with exclusive write access. Changes staged on the Tx are
// committed when fn returns nil and discarded when it returns an error.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newTx(s)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// Get returns the content value stored under key
func (s *Store) Get(key int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.content[key]
	if !ok {
		return "", errors.Wrapf(ErrNotFound, "content key %d", key)
	}
	return value, nil
}

// Mapping returns the reference stored under slot
func (s *Store) Mapping(slot string) (Ref, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, ok := s.mappings[slot]
	return ref, ok
}

// Resolve follows a slot to its content values
func (s *Store) Resolve(slot string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, ok := s.mappings[slot]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "slot %q", slot)
	}
	values := make([]string, 0, len(ref.keys))
	for _, key := range ref.keys {
		value, ok := s.content[key]
		if !ok {
			// Unreachable through Update or Restore.
			return nil, errors.Wrapf(ErrDanglingReference, "slot %q references %d", slot, key)
		}
		values = append(values, value)
	}
	return values, nil
}

// ContentKeys returns the Content Table keys sorted ascending
func (s *Store) ContentKeys() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]int64, 0, len(s.content))
	for k := range s.content {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// SlotKeys returns the Mapping Table keys sorted ascending
func (s *Store) SlotKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.mappings))
	for k := range s.mappings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries in each table
func (s *Store) Len() (content, mappings int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.content), len(s.mappings)
}

// Reset empties both tables
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = make(map[int64]string)
	s.mappings = make(map[string]Ref)
}
