package store

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Snapshot is a detached copy of both tables. Its JSON form is
//
//	{"content": {"1": "value"}, "mappings": {"slot": 1, "list": [1, 2]}}
type Snapshot struct {
	Content  map[int64]string `json:"content"`
	Mappings map[string]Ref   `json:"mappings"`
}

// ParseSnapshot decodes and validates a JSON snapshot
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(ErrInvalidSnapshot, err.Error())
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Validate checks that content keys are non-negative and that every mapping
// references existing content
func (snap *Snapshot) Validate() error {
	for key := range snap.Content {
		if key < 0 {
			return errors.Wrapf(ErrInvalidSnapshot, "content key %d is negative", key)
		}
	}
	for slot, ref := range snap.Mappings {
		if slot == "" {
			return errors.Wrap(ErrInvalidSnapshot, "empty slot key")
		}
		if ref.IsZero() {
			return errors.Wrapf(ErrInvalidSnapshot, "slot %q has an empty reference", slot)
		}
		for _, key := range ref.keys {
			if _, ok := snap.Content[key]; !ok {
				return errors.Wrapf(ErrInvalidSnapshot, "slot %q references missing content key %d", slot, key)
			}
		}
	}
	return nil
}

// Snapshot copies the current tables
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Content:  make(map[int64]string, len(s.content)),
		Mappings: make(map[string]Ref, len(s.mappings)),
	}
	for k, v := range s.content {
		snap.Content[k] = v
	}
	for k, v := range s.mappings {
		snap.Mappings[k] = Ref{keys: v.Keys(), list: v.list}
	}
	return snap
}

// Restore replaces both tables with the snapshot's contents. The store is
// left untouched when the snapshot is invalid.
func (s *Store) Restore(snap *Snapshot) error {
	if snap == nil {
		return errors.Wrap(ErrInvalidSnapshot, "nil snapshot")
	}
	if err := snap.Validate(); err != nil {
		return err
	}

	content := make(map[int64]string, len(snap.Content))
	for k, v := range snap.Content {
		content[k] = v
	}
	mappings := make(map[string]Ref, len(snap.Mappings))
	for k, v := range snap.Mappings {
		mappings[k] = Ref{keys: v.Keys(), list: v.list}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = content
	s.mappings = mappings
	return nil
}

// FromSnapshot creates a store pre-populated from snap
func FromSnapshot(snap *Snapshot) (*Store, error) {
	s := New()
	if err := s.Restore(snap); err != nil {
		return nil, err
	}
	return s, nil
}
