// Package mapping implements the nine population strategies that distribute
// values extracted from a source document into a store's Content Table and
// Mapping Table.
package mapping

import (
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/amor/amor-go/pathutil"
	"github.com/amor/amor-go/store"
)

const (
	defaultSlotAttempts = 64
	defaultIDAttempts   = 1 << 20
)

// Policy holds the session-scoped write flags
type Policy struct {
	// OverwriteKeyValues lets a write replace a differing existing value
	OverwriteKeyValues bool
	// FailFast aborts the whole directive on the first record-level error
	FailFast bool
}

// DefaultPolicy overwrites and keeps going
func DefaultPolicy() Policy {
	return Policy{OverwriteKeyValues: true, FailFast: false}
}

// Engine applies directives to one store. Directives against the same store
// are serialized by the store's write lock.
type Engine struct {
	store        *store.Store
	logger       *zap.Logger
	keys         KeyGenerator
	slotAttempts int
	idAttempts   int

	mu     sync.RWMutex
	policy Policy
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger; the default discards everything
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithKeyGenerator sets the slot key generator
func WithKeyGenerator(gen KeyGenerator) Option {
	return func(e *Engine) {
		if gen != nil {
			e.keys = gen
		}
	}
}

// WithPolicy sets both write flags
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithFailFast sets the failFast flag
func WithFailFast(failFast bool) Option {
	return func(e *Engine) { e.policy.FailFast = failFast }
}

// WithOverwriteKeyValues sets the overwriteKeyValues flag
func WithOverwriteKeyValues(overwrite bool) Option {
	return func(e *Engine) { e.policy.OverwriteKeyValues = overwrite }
}

// WithSlotAttempts bounds how often a colliding slot key is regenerated
func WithSlotAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.slotAttempts = n
		}
	}
}

// WithIDAttempts bounds the identifier allocator's probe count
func WithIDAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.idAttempts = n
		}
	}
}

// NewEngine creates an engine writing into st
func NewEngine(st *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:        st,
		logger:       zap.NewNop(),
		keys:         NewCounterKeys(DefaultSlotPrefix),
		slotAttempts: defaultSlotAttempts,
		idAttempts:   defaultIDAttempts,
		policy:       DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the store the engine writes into
func (e *Engine) Store() *store.Store {
	return e.store
}

// Policy returns the current write flags
func (e *Engine) Policy() Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// SetPolicy replaces the write flags for subsequent directives
func (e *Engine) SetPolicy(p Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = p
}

// SetFailFast changes the failFast flag for subsequent directives
func (e *Engine) SetFailFast(failFast bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy.FailFast = failFast
}

// SetOverwriteKeyValues changes the overwriteKeyValues flag for subsequent
// directives
func (e *Engine) SetOverwriteKeyValues(overwrite bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy.OverwriteKeyValues = overwrite
}

// record is one zipped position across the extracted sequences
type record struct {
	index      int
	contentKey int64
	value      string
	slot       string
	ref        store.Ref
}

func (r *record) key(p Plan) string {
	if p.WritesMappings && r.slot != "" {
		return r.slot
	}
	if p.WritesContent {
		return strconv.FormatInt(r.contentKey, 10)
	}
	return r.ref.String()
}

// Apply runs a directive. Directive-level errors (invalid strategy, invalid
// path, extraction mismatch, allocation exhaustion) leave the store
// untouched. Record-level errors abort the same way under failFast and are
// otherwise reported in the Result while the remaining records proceed.
func (e *Engine) Apply(d Directive) (*Result, error) {
	plan, err := d.Strategy.Plan()
	if err != nil {
		return nil, directiveError(d, ErrInvalidStrategy, err)
	}

	seqs, n, err := e.extract(d, plan)
	if err != nil {
		return nil, err
	}

	policy := e.Policy()
	result := &Result{Directive: d.Name, Strategy: d.Strategy, Records: n}

	err = e.store.Update(func(tx *store.Tx) error {
		ids := newIDAllocator(tx, e.idAttempts)
		for i := 0; i < n; i++ {
			rec, merr := e.applyRecord(tx, d, plan, policy, ids, seqs, i)
			if merr == nil {
				result.Applied++
				if rec.unchanged {
					result.Unchanged++
				}
				if plan.WritesContent {
					result.ContentKeys = append(result.ContentKeys, rec.contentKey)
				}
				if plan.WritesMappings {
					result.SlotKeys = append(result.SlotKeys, rec.slot)
				}
				continue
			}
			if merr.Fatal() || policy.FailFast {
				return merr
			}
			result.skip(merr)
			e.logger.Warn("skipping record",
				zap.String("directive", d.Name),
				zap.Int("strategy", int(d.Strategy)),
				zap.Int("record", merr.Record),
				zap.String("key", merr.Key),
				zap.Error(merr))
		}
		return nil
	})
	if err != nil {
		var merr *MappingError
		if !errors.As(err, &merr) {
			merr = directiveError(d, ErrMalformedRecord, err)
		}
		e.logger.Debug("directive aborted",
			zap.String("directive", d.Name),
			zap.Int("strategy", int(d.Strategy)),
			zap.Error(merr))
		return nil, merr
	}

	e.logger.Debug("directive applied",
		zap.String("directive", d.Name),
		zap.Int("strategy", int(d.Strategy)),
		zap.Int("records", result.Records),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

type sequences struct {
	ids    []gjson.Result
	slots  []gjson.Result
	values []gjson.Result
}

// extract evaluates every path the plan uses and checks that the sequences
// line up positionally
func (e *Engine) extract(d Directive, plan Plan) (sequences, int, error) {
	var seqs sequences
	n := -1
	var lengths []string

	for _, rp := range d.usedPaths(plan) {
		results, err := pathutil.Extract(rp.expr, d.Source)
		if err != nil {
			return seqs, 0, directiveError(d, ErrInvalidPath, errors.Wrapf(err, "%s path %q", rp.role, rp.expr))
		}
		switch rp.role {
		case "id":
			seqs.ids = results
		case "slot":
			seqs.slots = results
		case "value":
			seqs.values = results
		}
		lengths = append(lengths, rp.role+"="+strconv.Itoa(len(results)))
		if n == -1 {
			n = len(results)
		} else if n != len(results) {
			n = -2
		}
	}

	switch n {
	case -1:
		return seqs, 0, nil
	case -2:
		return seqs, 0, directiveError(d, ErrPathExtractionMismatch,
			errors.Newf("extracted sequence lengths differ: %v", lengths))
	}
	return seqs, n, nil
}

type recordOutcome struct {
	record
	unchanged bool
}

// applyRecord validates every write of record i before staging any of them
func (e *Engine) applyRecord(tx *store.Tx, d Directive, plan Plan, policy Policy, ids *idAllocator, seqs sequences, i int) (recordOutcome, *MappingError) {
	rec := recordOutcome{record: record{index: i}}

	// Coerce extracted values first so a malformed record does not consume
	// synthesized keys.
	var extractedIDs []int64
	var list bool
	if plan.ID == Extracted {
		if plan.WritesContent {
			key, err := pathutil.ContentKey(seqs.ids[i])
			if err != nil {
				return rec, recordError(d, i, seqs.ids[i].Raw, ErrMalformedRecord, err)
			}
			extractedIDs = []int64{key}
		} else {
			keys, isList, err := pathutil.ContentKeys(seqs.ids[i])
			if err != nil {
				return rec, recordError(d, i, seqs.ids[i].Raw, ErrMalformedRecord, err)
			}
			extractedIDs, list = keys, isList
		}
	}
	if plan.WritesContent {
		value, err := pathutil.ContentValue(seqs.values[i])
		if err != nil {
			key := seqs.values[i].Raw
			if len(extractedIDs) > 0 {
				key = strconv.FormatInt(extractedIDs[0], 10)
			}
			return rec, recordError(d, i, key, ErrMalformedRecord, err)
		}
		rec.value = value
	}
	if plan.Slot == Extracted {
		slot, err := pathutil.SlotKey(seqs.slots[i])
		if err != nil {
			return rec, recordError(d, i, seqs.slots[i].Raw, ErrMalformedRecord, err)
		}
		rec.slot = slot
	}

	switch plan.ID {
	case Extracted:
		rec.contentKey = extractedIDs[0]
		if list {
			rec.ref = store.List(extractedIDs...)
		} else {
			rec.ref = store.Single(extractedIDs[0])
		}
	case Synthesized:
		key, err := ids.Next()
		if err != nil {
			return rec, directiveRecordError(d, i, err)
		}
		rec.contentKey = key
		rec.ref = store.Single(key)
	}
	if plan.Slot == Synthesized {
		slot, err := nextSlot(tx, e.keys, e.slotAttempts)
		if err != nil {
			return rec, directiveRecordError(d, i, err)
		}
		rec.slot = slot
	}

	contentOutcome := store.Unchanged
	if plan.WritesContent {
		outcome, err := tx.CheckContent(rec.contentKey, rec.value, policy.OverwriteKeyValues)
		if err != nil {
			return rec, recordError(d, i, strconv.FormatInt(rec.contentKey, 10), classify(err), err)
		}
		contentOutcome = outcome
	}
	mappingOutcome := store.Unchanged
	if plan.WritesMappings {
		var pending []int64
		if plan.WritesContent {
			pending = []int64{rec.contentKey}
		}
		outcome, err := tx.CheckMapping(rec.slot, rec.ref, policy.OverwriteKeyValues, pending...)
		if err != nil {
			return rec, recordError(d, i, rec.slot, classify(err), err)
		}
		mappingOutcome = outcome
	}

	if plan.WritesContent {
		if _, err := tx.SetContent(rec.contentKey, rec.value, policy.OverwriteKeyValues); err != nil {
			return rec, recordError(d, i, rec.key(plan), classify(err), err)
		}
	}
	if plan.WritesMappings {
		if _, err := tx.SetMapping(rec.slot, rec.ref, policy.OverwriteKeyValues); err != nil {
			return rec, recordError(d, i, rec.key(plan), classify(err), err)
		}
	}

	rec.unchanged = contentOutcome == store.Unchanged && mappingOutcome == store.Unchanged
	return rec, nil
}

// directiveRecordError reports an allocator failure at the record where it
// happened
func directiveRecordError(d Directive, i int, err error) *MappingError {
	return recordError(d, i, "", ErrAllocationExhausted, err)
}
