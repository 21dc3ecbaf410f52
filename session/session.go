// Package session replaces a page-level model singleton with an explicit
// object: one store, one engine, the session-scoped write policy and a locale
// tag. Population from a transformer records its load phases in a report.
package session

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/amor/amor-go/adapters"
	"github.com/amor/amor-go/mapping"
	"github.com/amor/amor-go/store"
)

// Phase names a completed stage of population
type Phase string

const (
	PhaseConfigLoaded     Phase = "config_loaded"
	PhaseContentLoaded    Phase = "content_loaded"
	PhaseMappingsLoaded   Phase = "mappings_loaded"
	PhaseContentProcessed Phase = "content_processed"
)

// PhaseHook is called synchronously after each phase completes
type PhaseHook func(phase Phase, report *LoadReport)

// LoadReport describes one Populate run
type LoadReport struct {
	Auth    *adapters.AuthResult
	Phases  []Phase
	Results []*mapping.Result
}

// Completed reports whether phase was reached
func (r *LoadReport) Completed(phase Phase) bool {
	for _, p := range r.Phases {
		if p == phase {
			return true
		}
	}
	return false
}

// Skipped totals the records skipped across all directives
func (r *LoadReport) Skipped() int {
	n := 0
	for _, res := range r.Results {
		n += res.Skipped
	}
	return n
}

// Session owns a store and the engine writing into it
type Session struct {
	store  *store.Store
	engine *mapping.Engine
	logger *zap.Logger
	hook   PhaseHook

	mu     sync.RWMutex
	locale string
}

type options struct {
	logger   *zap.Logger
	snapshot *store.Snapshot
	locale   string
	hook     PhaseHook
	keys     mapping.KeyGenerator
	policy   mapping.Policy
}

// Option configures a Session
type Option func(*options)

// WithLogger sets the logger for the session and its engine
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSnapshot starts the session from default content
func WithSnapshot(snap *store.Snapshot) Option {
	return func(o *options) { o.snapshot = snap }
}

// WithLocale sets the initial locale tag
func WithLocale(tag string) Option {
	return func(o *options) { o.locale = tag }
}

// WithPhaseHook registers a hook called as population phases complete
func WithPhaseHook(hook PhaseHook) Option {
	return func(o *options) { o.hook = hook }
}

// WithKeyGenerator sets the slot key generator used by synthesizing strategies
func WithKeyGenerator(gen mapping.KeyGenerator) Option {
	return func(o *options) { o.keys = gen }
}

// WithPolicy sets the initial write policy
func WithPolicy(p mapping.Policy) Option {
	return func(o *options) { o.policy = p }
}

// New creates a session. A snapshot that breaks referential integrity is
// rejected.
func New(opts ...Option) (*Session, error) {
	o := options{
		logger: zap.NewNop(),
		policy: mapping.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	st := store.New()
	if o.snapshot != nil {
		if err := st.Restore(o.snapshot); err != nil {
			return nil, errors.Wrap(err, "loading default content")
		}
	}

	engineOpts := []mapping.Option{
		mapping.WithLogger(o.logger),
		mapping.WithPolicy(o.policy),
	}
	if o.keys != nil {
		engineOpts = append(engineOpts, mapping.WithKeyGenerator(o.keys))
	}

	return &Session{
		store:  st,
		engine: mapping.NewEngine(st, engineOpts...),
		logger: o.logger,
		hook:   o.hook,
		locale: o.locale,
	}, nil
}

// Apply runs one directive against the session's store
func (s *Session) Apply(d mapping.Directive) (*mapping.Result, error) {
	return s.engine.Apply(d)
}

// SetFailFast changes the failFast flag for subsequent directives
func (s *Session) SetFailFast(failFast bool) {
	s.engine.SetFailFast(failFast)
}

// SetOverwriteKeyValues changes the overwrite flag for subsequent directives
func (s *Session) SetOverwriteKeyValues(overwrite bool) {
	s.engine.SetOverwriteKeyValues(overwrite)
}

// Policy returns the current write policy
func (s *Session) Policy() mapping.Policy {
	return s.engine.Policy()
}

// Store exposes the tables read-only
func (s *Session) Store() store.Reader {
	return s.store
}

// Snapshot exports both tables
func (s *Session) Snapshot() *store.Snapshot {
	return s.store.Snapshot()
}

// Reset empties both tables. Policy, locale and the slot key sequence stay.
func (s *Session) Reset() {
	s.store.Reset()
}

// Locale returns the current locale tag
func (s *Session) Locale() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locale
}

// SwitchLocale replaces the locale tag. Content is not reloaded.
func (s *Session) SwitchLocale(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Debug("switching locale", zap.String("from", s.locale), zap.String("to", tag))
	s.locale = tag
}

// Populate authenticates through t, applies every content directive and then
// every mapping directive. Content goes first so mappings can reference it.
// The report is returned even on error and lists the phases reached.
func (s *Session) Populate(ctx context.Context, t adapters.Transformer, auth adapters.Authenticator, creds adapters.Credentials) (*LoadReport, error) {
	report := &LoadReport{}

	result, err := t.DoAuthentication(ctx, auth, creds)
	if err != nil {
		return report, errors.Wrap(err, "authenticating")
	}
	report.Auth = result
	s.complete(PhaseConfigLoaded, report)

	for _, key := range t.ContentKeys() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := t.SetMappedContent(ctx, key, s)
		if err != nil {
			return report, errors.Wrapf(err, "content directive %q", key)
		}
		report.Results = append(report.Results, res)
	}
	s.complete(PhaseContentLoaded, report)

	for _, key := range t.MappingKeys() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := t.SetMappedMappings(ctx, key, s)
		if err != nil {
			return report, errors.Wrapf(err, "mapping directive %q", key)
		}
		report.Results = append(report.Results, res)
	}
	s.complete(PhaseMappingsLoaded, report)

	if err := s.store.Snapshot().Validate(); err != nil {
		return report, errors.Wrap(err, "processing content")
	}
	s.complete(PhaseContentProcessed, report)
	return report, nil
}

func (s *Session) complete(phase Phase, report *LoadReport) {
	report.Phases = append(report.Phases, phase)
	s.logger.Debug("phase complete", zap.String("phase", string(phase)), zap.Int("results", len(report.Results)))
	if s.hook != nil {
		s.hook(phase, report)
	}
}
