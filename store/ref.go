package store

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Ref is the value of a Mapping Table entry: either a single content key or
// an ordered list of content keys.
type Ref struct {
	keys []int64
	list bool
}

// Single returns a reference to one content key
func Single(key int64) Ref {
	return Ref{keys: []int64{key}}
}

// List returns an ordered list reference. The keys are copied.
func List(keys ...int64) Ref {
	cp := make([]int64, len(keys))
	copy(cp, keys)
	return Ref{keys: cp, list: true}
}

// Keys returns a copy of the referenced content keys in order
func (r Ref) Keys() []int64 {
	cp := make([]int64, len(r.keys))
	copy(cp, r.keys)
	return cp
}

// IsList reports whether the reference was built as a list
func (r Ref) IsList() bool {
	return r.list
}

// IsZero reports whether the reference points at nothing
func (r Ref) IsZero() bool {
	return len(r.keys) == 0
}

// Equal compares two references, including their single/list shape
func (r Ref) Equal(other Ref) bool {
	if r.list != other.list || len(r.keys) != len(other.keys) {
		return false
	}
	for i := range r.keys {
		if r.keys[i] != other.keys[i] {
			return false
		}
	}
	return true
}

func (r Ref) String() string {
	if !r.list && len(r.keys) == 1 {
		return strconv.FormatInt(r.keys[0], 10)
	}
	parts := make([]string, len(r.keys))
	for i, k := range r.keys {
		parts[i] = strconv.FormatInt(k, 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// MarshalJSON encodes a single reference as a number and a list as an array
func (r Ref) MarshalJSON() ([]byte, error) {
	if !r.list && len(r.keys) == 1 {
		return json.Marshal(r.keys[0])
	}
	keys := r.keys
	if keys == nil {
		keys = []int64{}
	}
	return json.Marshal(keys)
}

// UnmarshalJSON accepts either a number or an array of numbers
func (r *Ref) UnmarshalJSON(data []byte) error {
	var single int64
	if err := json.Unmarshal(data, &single); err == nil {
		*r = Single(single)
		return nil
	}
	var keys []int64
	if err := json.Unmarshal(data, &keys); err != nil {
		return errors.Wrapf(ErrInvalidSnapshot, "mapping reference %s", string(data))
	}
	*r = List(keys...)
	return nil
}
