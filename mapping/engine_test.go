package mapping

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/amor/amor-go/internal/testutils"
	"github.com/amor/amor-go/pathutil"
	"github.com/amor/amor-go/store"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	return NewEngine(store.New(), opts...)
}

func seedContent(t *testing.T, st *store.Store, content map[int64]string) {
	t.Helper()
	require.NoError(t, st.Update(func(tx *store.Tx) error {
		for k, v := range content {
			if _, err := tx.SetContent(k, v, true); err != nil {
				return err
			}
		}
		return nil
	}))
}

// assertReferentialIntegrity checks that every mapping points at content
func assertReferentialIntegrity(t *testing.T, st *store.Store) {
	t.Helper()
	for _, slot := range st.SlotKeys() {
		ref, ok := st.Mapping(slot)
		require.True(t, ok)
		for _, key := range ref.Keys() {
			_, err := st.Get(key)
			assert.NoError(t, err, "slot %q references %d", slot, key)
		}
	}
}

func TestWildcardFanOutBothTables(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Apply(Directive{
		Name:      "links",
		Strategy:  ContentAndMappingByIDAndSlot,
		IDPath:    "data[*].feed.id",
		SlotPath:  "data[*].feed.id",
		ValuePath: "data[*].feed.url",
		Source:    testutils.TwoFeed(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Records)
	assert.Equal(t, 2, result.Applied)
	assert.True(t, result.OK())

	snap := e.Store().Snapshot()
	assert.Equal(t, map[int64]string{1: "u1", 2: "u2"}, snap.Content)
	assert.Equal(t, map[string]store.Ref{"1": store.Single(1), "2": store.Single(2)}, snap.Mappings)
}

func TestCounterStrategySynthesizesBothKeys(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Apply(Directive{
		Strategy:  ContentAndMappingSynthesized,
		ValuePath: "data[*].feed.url",
		Source:    testutils.TwoFeed(),
	})
	require.NoError(t, err)
	require.Len(t, result.ContentKeys, 2)
	require.Len(t, result.SlotKeys, 2)
	assert.NotEqual(t, result.ContentKeys[0], result.ContentKeys[1])
	assert.NotEqual(t, result.SlotKeys[0], result.SlotKeys[1])

	st := e.Store()
	for i, want := range []string{"u1", "u2"} {
		values, err := st.Resolve(result.SlotKeys[i])
		require.NoError(t, err)
		assert.Equal(t, []string{want}, values)

		value, err := st.Get(result.ContentKeys[i])
		require.NoError(t, err)
		assert.Equal(t, want, value)
	}
}

func TestConflictDetection(t *testing.T) {
	e := newTestEngine(t, WithOverwriteKeyValues(false))
	seedContent(t, e.Store(), map[int64]string{5: "a"})

	result, err := e.Apply(Directive{
		Strategy:  ContentByID,
		IDPath:    "id",
		ValuePath: "v",
		Source:    pathutil.MustDocument(`{"id": 5, "v": "b"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, []string{"5"}, result.SkippedKeys)
	require.Len(t, result.Errors, 1)
	assert.ErrorIs(t, result.Errors[0], ErrKeyConflict)

	value, err := e.Store().Get(5)
	require.NoError(t, err)
	assert.Equal(t, "a", value)
}

func TestMappingConflictLeavesNoContent(t *testing.T) {
	e := newTestEngine(t, WithOverwriteKeyValues(false))
	_, err := e.Apply(Directive{
		Strategy:  ContentAndMappingBySlot,
		SlotPath:  "s[*]",
		ValuePath: "v[*]",
		Source:    pathutil.MustDocument(`{"s": ["x"], "v": ["one"]}`),
	})
	require.NoError(t, err)

	result, err := e.Apply(Directive{
		Strategy:  ContentAndMappingBySlot,
		SlotPath:  "s[*]",
		ValuePath: "v[*]",
		Source:    pathutil.MustDocument(`{"s": ["x", "y"], "v": ["two", "three"]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, []string{"x"}, result.SkippedKeys)
	require.Len(t, result.Errors, 1)
	assert.ErrorIs(t, result.Errors[0], ErrKeyConflict)

	st := e.Store()
	assert.Len(t, st.ContentKeys(), 2)
	for _, key := range st.ContentKeys() {
		value, err := st.Get(key)
		require.NoError(t, err)
		assert.NotEqual(t, "two", value)
	}
	values, err := st.Resolve("x")
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, values)
	values, err = st.Resolve("y")
	require.NoError(t, err)
	assert.Equal(t, []string{"three"}, values)
	assertReferentialIntegrity(t, st)
}

func TestIdenticalValueIsNoOpWithoutOverwrite(t *testing.T) {
	e := newTestEngine(t, WithOverwriteKeyValues(false), WithFailFast(true))
	seedContent(t, e.Store(), map[int64]string{5: "a"})

	result, err := e.Apply(Directive{
		Strategy:  ContentByID,
		IDPath:    "id",
		ValuePath: "v",
		Source:    pathutil.MustDocument(`{"id": 5, "v": "a"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, 1, result.Unchanged)
}

func TestDanglingReferenceRejected(t *testing.T) {
	doc := pathutil.MustDocument(`{"slot": "x", "id": 99}`)
	d := Directive{Name: "nav", Strategy: MappingByIDAndSlot, IDPath: "id", SlotPath: "slot", Source: doc}

	t.Run("skip", func(t *testing.T) {
		e := newTestEngine(t)
		result, err := e.Apply(d)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, []string{"x"}, result.SkippedKeys)
		assert.ErrorIs(t, result.Errors[0], ErrDanglingReference)
		assert.Empty(t, e.Store().SlotKeys())
	})

	t.Run("fail fast", func(t *testing.T) {
		e := newTestEngine(t, WithFailFast(true))
		result, err := e.Apply(d)
		assert.Nil(t, result)
		require.ErrorIs(t, err, ErrDanglingReference)

		var merr *MappingError
		require.True(t, errors.As(err, &merr))
		assert.Equal(t, 0, merr.Record)
		assert.Equal(t, "x", merr.Key)
		assert.Equal(t, "nav", merr.Directive)
		assert.Equal(t, MappingByIDAndSlot, merr.Strategy)
		assert.Empty(t, e.Store().SlotKeys())
	})
}

func TestFailFastIsAtomic(t *testing.T) {
	e := newTestEngine(t, WithFailFast(true))
	seedContent(t, e.Store(), map[int64]string{1: "one"})

	_, err := e.Apply(Directive{
		Strategy: MappingByIDAndSlot,
		IDPath:   "m[*].id",
		SlotPath: "m[*].s",
		Source:   pathutil.MustDocument(`{"m": [{"s": "a", "id": 1}, {"s": "b", "id": 99}]}`),
	})
	require.ErrorIs(t, err, ErrDanglingReference)
	assert.Empty(t, e.Store().SlotKeys())

	e.SetFailFast(false)
	result, err := e.Apply(Directive{
		Strategy: MappingByIDAndSlot,
		IDPath:   "m[*].id",
		SlotPath: "m[*].s",
		Source:   pathutil.MustDocument(`{"m": [{"s": "a", "id": 1}, {"s": "b", "id": 99}]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, []string{"a"}, e.Store().SlotKeys())
}

func TestInvalidStrategy(t *testing.T) {
	for _, s := range []Strategy{0, 10, -1} {
		t.Run(s.String(), func(t *testing.T) {
			e := newTestEngine(t)
			seedContent(t, e.Store(), map[int64]string{1: "one"})
			before := e.Store().Snapshot()

			_, err := e.Apply(Directive{
				Name:      "bad",
				Strategy:  s,
				IDPath:    "data[*].feed.id",
				ValuePath: "data[*].feed.url",
				Source:    testutils.TwoFeed(),
			})
			require.ErrorIs(t, err, ErrInvalidStrategy)

			var merr *MappingError
			require.True(t, errors.As(err, &merr))
			assert.Equal(t, -1, merr.Record)
			assert.Equal(t, "bad", merr.Directive)
			assert.True(t, merr.Fatal())
			assert.Equal(t, before, e.Store().Snapshot())
		})
	}
}

func TestIdempotentStrategies(t *testing.T) {
	feed := testutils.SampleFeed()
	directives := []Directive{
		{Strategy: ContentByID, IDPath: "data[*].feed.id", ValuePath: "data[*].feed.title", Source: feed},
		{Strategy: MappingByIDAndSlot, IDPath: "data[*].feed.id", SlotPath: "data[*].feed.url", Source: feed},
		{Strategy: ContentAndMappingByIDAndSlot, IDPath: "data[*].feed.id", SlotPath: "data[*].feed.title", ValuePath: "data[*].feed.url", Source: feed},
	}

	once := newTestEngine(t)
	twice := newTestEngine(t)
	for _, d := range directives {
		_, err := once.Apply(d)
		require.NoError(t, err)
		for i := 0; i < 2; i++ {
			_, err := twice.Apply(d)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, once.Store().Snapshot(), twice.Store().Snapshot())
}

func TestEveryStrategyKeepsReferentialIntegrity(t *testing.T) {
	for _, s := range Strategies() {
		t.Run(s.String(), func(t *testing.T) {
			e := newTestEngine(t)
			_, err := e.Apply(Directive{
				Strategy:  ContentByID,
				IDPath:    "data[*].feed.id",
				ValuePath: "data[*].feed.title",
				Source:    testutils.SampleFeed(),
			})
			require.NoError(t, err)

			result, err := e.Apply(Directive{
				Strategy:  s,
				IDPath:    "data[*].feed.id",
				SlotPath:  "data[*].feed.url",
				ValuePath: "data[*].feed.url",
				Source:    testutils.SampleFeed(),
			})
			require.NoError(t, err)
			assert.Equal(t, 5, result.Records)
			assert.Equal(t, 5, result.Applied+result.Skipped)

			plan, err := s.Plan()
			require.NoError(t, err)
			if plan.WritesContent {
				assert.Len(t, result.ContentKeys, result.Applied)
			}
			if plan.WritesMappings {
				assert.Len(t, result.SlotKeys, result.Applied)
			}
			assertReferentialIntegrity(t, e.Store())
		})
	}
}

func TestSynthesizedIDsAvoidExistingKeys(t *testing.T) {
	e := newTestEngine(t)
	seedContent(t, e.Store(), map[int64]string{0: "zero", 5: "five"})

	result, err := e.Apply(Directive{
		Strategy:  ContentByCounter,
		ValuePath: "data[*].feed.title",
		Source:    testutils.SampleFeed(),
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{6, 7, 8, 9, 10}, result.ContentKeys)

	result, err = e.Apply(Directive{
		Strategy:  ContentByCounter,
		ValuePath: "data[0].feed.title",
		Source:    testutils.SampleFeed(),
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, result.ContentKeys)
}

func TestSynthesizedIDMappingIsDangling(t *testing.T) {
	e := newTestEngine(t)
	seedContent(t, e.Store(), map[int64]string{1: "one"})

	result, err := e.Apply(Directive{
		Strategy: MappingSynthesized,
		IDPath:   "data[*].feed.id",
		Source:   testutils.TwoFeed(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Records)
	assert.Equal(t, 2, result.Skipped)
	for _, merr := range result.Errors {
		assert.ErrorIs(t, merr, ErrDanglingReference)
	}
	assert.Empty(t, e.Store().SlotKeys())
}

func TestMappingByIDSynthesizesSlots(t *testing.T) {
	e := newTestEngine(t, WithKeyGenerator(NewCounterKeys("nav-")))
	seedContent(t, e.Store(), map[int64]string{1: "one", 2: "two"})

	result, err := e.Apply(Directive{
		Strategy: MappingByID,
		IDPath:   "data[*].feed.id",
		Source:   testutils.TwoFeed(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"nav-1", "nav-2"}, result.SlotKeys)

	values, err := e.Store().Resolve("nav-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"two"}, values)
}

func TestMappingListFromArrayID(t *testing.T) {
	e := newTestEngine(t)
	seedContent(t, e.Store(), map[int64]string{1: "one", 2: "two"})

	_, err := e.Apply(Directive{
		Strategy: MappingByIDAndSlot,
		IDPath:   "nav.ids",
		SlotPath: "nav.slot",
		Source:   pathutil.MustDocument(`{"nav": {"slot": "menu", "ids": [2, 1]}}`),
	})
	require.NoError(t, err)

	ref, ok := e.Store().Mapping("menu")
	require.True(t, ok)
	assert.True(t, ref.IsList())

	values, err := e.Store().Resolve("menu")
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "one"}, values)
}

func TestPathExtractionMismatch(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Apply(Directive{
		Strategy:  ContentAndMappingByIDAndSlot,
		IDPath:    "data[*].feed.id",
		SlotPath:  "data[*].feed.id",
		ValuePath: "data[*].feed.url",
		Source:    pathutil.MustDocument(`{"data": [{"feed": {"id": 1, "url": "u1"}}, {"feed": {"id": 2}}]}`),
	})
	require.ErrorIs(t, err, ErrPathExtractionMismatch)
	c, m := e.Store().Len()
	assert.Zero(t, c)
	assert.Zero(t, m)
}

func TestInvalidPath(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Apply(Directive{
		Strategy:  ContentByID,
		IDPath:    "data[*",
		ValuePath: "data[*].feed.url",
		Source:    testutils.TwoFeed(),
	})
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestMalformedRecordSkipped(t *testing.T) {
	e := newTestEngine(t)
	result, err := e.Apply(Directive{
		Strategy:  ContentByID,
		IDPath:    "items[*].id",
		ValuePath: "items[*].v",
		Source:    pathutil.MustDocument(`{"items": [{"id": "abc", "v": "x"}, {"id": 2, "v": "y"}, {"id": 3, "v": null}]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, 2, result.Skipped)
	for _, merr := range result.Errors {
		assert.ErrorIs(t, merr, ErrMalformedRecord)
	}
	assert.Equal(t, []int64{2}, e.Store().ContentKeys())
	require.Len(t, result.SkippedKeys, 2)
	assert.Equal(t, "3", result.SkippedKeys[1])
}

func TestEmptyPathsProduceNoRecords(t *testing.T) {
	e := newTestEngine(t)
	result, err := e.Apply(Directive{Strategy: ContentAndMappingSynthesized, Source: testutils.TwoFeed()})
	require.NoError(t, err)
	assert.Zero(t, result.Records)
}

type constantKeys string

func (c constantKeys) NextKey() string { return string(c) }

func TestSlotAllocationExhausted(t *testing.T) {
	e := newTestEngine(t, WithKeyGenerator(constantKeys("dup")), WithSlotAttempts(3))

	_, err := e.Apply(Directive{
		Strategy:  ContentAndMappingSynthesized,
		ValuePath: "data[*].feed.url",
		Source:    testutils.TwoFeed(),
	})
	require.ErrorIs(t, err, ErrAllocationExhausted)

	var merr *MappingError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, 1, merr.Record)

	c, m := e.Store().Len()
	assert.Zero(t, c)
	assert.Zero(t, m)
}

func TestConcurrentDirectivesAreSerialized(t *testing.T) {
	e := newTestEngine(t)
	const workers = 8

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Apply(Directive{
				Strategy:  ContentAndMappingSynthesized,
				ValuePath: "data[*].feed.url",
				Source:    testutils.SampleFeed(),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, m := e.Store().Len()
	assert.Equal(t, workers*5, c)
	assert.Equal(t, workers*5, m)
	assertReferentialIntegrity(t, e.Store())
}

func TestPolicySetters(t *testing.T) {
	e := NewEngine(store.New())
	assert.Equal(t, DefaultPolicy(), e.Policy())

	e.SetFailFast(true)
	e.SetOverwriteKeyValues(false)
	assert.Equal(t, Policy{OverwriteKeyValues: false, FailFast: true}, e.Policy())

	e.SetPolicy(DefaultPolicy())
	assert.True(t, e.Policy().OverwriteKeyValues)
}

func TestMappingErrorMessage(t *testing.T) {
	err := recordError(Directive{Name: "links", Strategy: ContentByID}, 3, "5", ErrKeyConflict, errors.New("content key 5 holds \"a\""))
	assert.Equal(t, `directive "links" (strategy 1) record 3 key "5": key conflict: content key 5 holds "a"`, err.Error())
	assert.False(t, err.Fatal())
	assert.True(t, errors.Is(err, store.ErrKeyConflict))
}
