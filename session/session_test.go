package session

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/amor/amor-go/adapters"
	"github.com/amor/amor-go/internal/testutils"
	"github.com/amor/amor-go/mapping"
	"github.com/amor/amor-go/pathutil"
	"github.com/amor/amor-go/store"
)

func feedTransformer(t *testing.T, specs ...adapters.DirectiveSpec) *adapters.DirectiveTransformer {
	t.Helper()
	sources := map[string]adapters.SourceProvider{
		"feed": adapters.NewStaticSource("feed", map[string]*pathutil.Document{
			"sample.json": testutils.SampleFeed(),
		}),
	}
	tr, err := adapters.NewDirectiveTransformer(sources, specs)
	require.NoError(t, err)
	return tr
}

var feedSpecs = []adapters.DirectiveSpec{
	{Name: "links", Source: "feed", Location: "sample.json", Strategy: 9, ValuePath: "data[*].feed.url"},
	{Name: "titles", Source: "feed", Location: "sample.json", Strategy: 1, IDPath: "data[*].feed.id", ValuePath: "data[*].feed.title"},
	{Name: "nav", Source: "feed", Location: "sample.json", Strategy: 5, IDPath: "data[*].feed.id"},
}

func TestPopulate(t *testing.T) {
	var seen []Phase
	sess, err := New(
		WithLogger(zaptest.NewLogger(t)),
		WithPhaseHook(func(phase Phase, report *LoadReport) {
			seen = append(seen, phase)
		}),
	)
	require.NoError(t, err)

	report, err := sess.Populate(context.Background(), feedTransformer(t, feedSpecs...), nil, adapters.Credentials{})
	require.NoError(t, err)

	expected := []Phase{PhaseConfigLoaded, PhaseContentLoaded, PhaseMappingsLoaded, PhaseContentProcessed}
	assert.Equal(t, expected, report.Phases)
	assert.Equal(t, expected, seen)
	assert.True(t, report.Completed(PhaseContentProcessed))
	assert.Equal(t, "none", report.Auth.Method)

	// content directives run before mapping directives
	require.Len(t, report.Results, 3)
	assert.Equal(t, "titles", report.Results[0].Directive)
	assert.Equal(t, "links", report.Results[1].Directive)
	assert.Equal(t, "nav", report.Results[2].Directive)
	assert.Equal(t, 0, report.Skipped())

	reader := sess.Store()
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, reader.ContentKeys())

	values, err := reader.Resolve("slot-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"url1"}, values)

	values, err = reader.Resolve("slot-6")
	require.NoError(t, err)
	assert.Equal(t, []string{"title1"}, values)

	require.NoError(t, sess.Snapshot().Validate())
}

func TestPopulateAuthentication(t *testing.T) {
	sess, err := New()
	require.NoError(t, err)

	auth := adapters.TokenAuthenticator{Method: adapters.AuthBearerToken}
	report, err := sess.Populate(context.Background(), feedTransformer(t, feedSpecs...), auth, adapters.Credentials{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, adapters.ErrUnauthenticated))
	assert.Empty(t, report.Phases)

	content, mappings := sess.store.Len()
	assert.Zero(t, content)
	assert.Zero(t, mappings)

	report, err = sess.Populate(context.Background(), feedTransformer(t, feedSpecs[1]), auth, adapters.Credentials{Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer t", report.Auth.Headers["Authorization"])
}

func TestPopulateFailFast(t *testing.T) {
	snap := &store.Snapshot{
		Content:  map[int64]string{1: "kept"},
		Mappings: map[string]store.Ref{},
	}
	sess, err := New(WithSnapshot(snap), WithPolicy(mapping.Policy{OverwriteKeyValues: false, FailFast: true}))
	require.NoError(t, err)

	report, err := sess.Populate(context.Background(), feedTransformer(t, feedSpecs...), nil, adapters.Credentials{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, mapping.ErrKeyConflict))
	assert.Equal(t, []Phase{PhaseConfigLoaded}, report.Phases)

	value, err := sess.Store().Get(1)
	require.NoError(t, err)
	assert.Equal(t, "kept", value)
	assert.Equal(t, []int64{1}, sess.Store().ContentKeys())

	sess.SetFailFast(false)
	report, err = sess.Populate(context.Background(), feedTransformer(t, feedSpecs[1]), nil, adapters.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped())
	assert.Equal(t, []string{"1"}, report.Results[0].SkippedKeys)
}

func TestPopulateCancelled(t *testing.T) {
	sess, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := sess.Populate(ctx, feedTransformer(t, feedSpecs...), nil, adapters.Credentials{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []Phase{PhaseConfigLoaded}, report.Phases)
}

func TestNewRejectsDanglingSnapshot(t *testing.T) {
	_, err := New(WithSnapshot(&store.Snapshot{
		Content:  map[int64]string{},
		Mappings: map[string]store.Ref{"nav": store.Single(3)},
	}))
	assert.ErrorIs(t, err, store.ErrInvalidSnapshot)
}

func TestPolicyAndLocale(t *testing.T) {
	sess, err := New(WithLocale("en"), WithKeyGenerator(mapping.NewCounterKeys("nav-")))
	require.NoError(t, err)

	assert.Equal(t, mapping.DefaultPolicy(), sess.Policy())
	sess.SetOverwriteKeyValues(false)
	sess.SetFailFast(true)
	assert.Equal(t, mapping.Policy{OverwriteKeyValues: false, FailFast: true}, sess.Policy())

	assert.Equal(t, "en", sess.Locale())
	sess.SwitchLocale("de")
	assert.Equal(t, "de", sess.Locale())

	res, err := sess.Apply(mapping.Directive{
		Name:      "links",
		Strategy:  mapping.ContentAndMappingSynthesized,
		ValuePath: "data[*].feed.url",
		Source:    testutils.TwoFeed(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"nav-1", "nav-2"}, res.SlotKeys)

	sess.Reset()
	assert.Empty(t, sess.Store().ContentKeys())
	assert.Empty(t, sess.Store().SlotKeys())
}
