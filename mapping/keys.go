package mapping

import (
	"math"
	"strconv"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/amor/amor-go/store"
)

// DefaultSlotPrefix prefixes counter-generated slot keys
const DefaultSlotPrefix = "slot-"

// KeyGenerator proposes slot keys. Proposals may collide with existing
// slots; the engine detects that and asks again.
type KeyGenerator interface {
	NextKey() string
}

// CounterKeys generates prefix-1, prefix-2, ... and keeps counting across
// directives
type CounterKeys struct {
	prefix string
	n      atomic.Uint64
}

// NewCounterKeys creates a counter generator. An empty prefix uses
// DefaultSlotPrefix.
func NewCounterKeys(prefix string) *CounterKeys {
	if prefix == "" {
		prefix = DefaultSlotPrefix
	}
	return &CounterKeys{prefix: prefix}
}

// NextKey returns the next key in sequence
func (c *CounterKeys) NextKey() string {
	return c.prefix + strconv.FormatUint(c.n.Add(1), 10)
}

// UUIDKeys generates random UUID slot keys
type UUIDKeys struct {
	Prefix string
}

// NextKey returns a fresh UUID, optionally prefixed
func (u UUIDKeys) NextKey() string {
	return u.Prefix + uuid.NewString()
}

// NewKeyGenerator builds a generator by name: "counter" (the default) or
// "uuid".
func NewKeyGenerator(kind, prefix string) (KeyGenerator, error) {
	switch kind {
	case "", "counter":
		return NewCounterKeys(prefix), nil
	case "uuid":
		return UUIDKeys{Prefix: prefix}, nil
	default:
		return nil, errors.Newf("unknown slot key generator %q", kind)
	}
}

// idAllocator hands out content keys that are unused in the transaction it
// was seeded from. Keys are strictly increasing.
type idAllocator struct {
	tx          *store.Tx
	next        int64
	seeded      bool
	maxAttempts int
}

func newIDAllocator(tx *store.Tx, maxAttempts int) *idAllocator {
	return &idAllocator{tx: tx, maxAttempts: maxAttempts}
}

func (a *idAllocator) Next() (int64, error) {
	if !a.seeded {
		if max, ok := a.tx.MaxContentKey(); ok {
			if max == math.MaxInt64 {
				return 0, errors.Wrap(ErrAllocationExhausted, "content key space is exhausted")
			}
			a.next = max + 1
		}
		a.seeded = true
	}

	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		candidate := a.next
		if candidate < 0 {
			break
		}
		if candidate == math.MaxInt64 {
			a.next = -1
		} else {
			a.next = candidate + 1
		}
		if !a.tx.HasContent(candidate) {
			return candidate, nil
		}
	}
	return 0, errors.Wrapf(ErrAllocationExhausted, "no free content key after %d attempts", a.maxAttempts)
}

// nextSlot asks gen for keys until one is unused in tx
func nextSlot(tx *store.Tx, gen KeyGenerator, maxAttempts int) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		key := gen.NextKey()
		if key != "" && !tx.HasSlot(key) {
			return key, nil
		}
	}
	return "", errors.Wrapf(ErrAllocationExhausted, "no free slot key after %d attempts", maxAttempts)
}
