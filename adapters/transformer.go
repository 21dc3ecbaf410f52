package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/amor/amor-go/mapping"
	"github.com/amor/amor-go/pathutil"
)

// ErrWrongDirectiveFamily is returned when a content-only directive is
// applied as a mapping directive or the other way around
var ErrWrongDirectiveFamily = errors.New("directive does not match the requested table")

// Applier is the target a transformer writes into, usually a session
type Applier interface {
	Apply(d mapping.Directive) (*mapping.Result, error)
}

// Transformer is the capability set a third-party API integration provides:
// fetch a document, fill the Content Table, fill the Mapping Table and
// authenticate against the API.
type Transformer interface {
	// DoAuthentication authenticates once per population run
	DoAuthentication(ctx context.Context, auth Authenticator, creds Credentials) (*AuthResult, error)

	// GetData fetches a source document
	GetData(ctx context.Context, sourceID, location string) (*pathutil.Document, error)

	// SetMappedContent applies the content directive named pathKey
	SetMappedContent(ctx context.Context, pathKey string, target Applier) (*mapping.Result, error)

	// SetMappedMappings applies the mapping directive named pathKey
	SetMappedMappings(ctx context.Context, pathKey string, target Applier) (*mapping.Result, error)

	// ContentKeys lists the content directives in application order
	ContentKeys() []string

	// MappingKeys lists the mapping directives in application order
	MappingKeys() []string
}

// DirectiveSpec describes a directive whose document comes from a named source
type DirectiveSpec struct {
	Name      string `json:"name" yaml:"name"`
	Source    string `json:"source" yaml:"source"`
	Location  string `json:"path" yaml:"path"`
	Strategy  int    `json:"strategy" yaml:"strategy"`
	IDPath    string `json:"id_path" yaml:"id_path"`
	SlotPath  string `json:"slot_path" yaml:"slot_path"`
	ValuePath string `json:"value_path" yaml:"value_path"`
}

// Directive binds the spec to a fetched document
func (s DirectiveSpec) Directive(doc *pathutil.Document) mapping.Directive {
	return mapping.Directive{
		Name:      s.Name,
		Strategy:  mapping.Strategy(s.Strategy),
		IDPath:    s.IDPath,
		SlotPath:  s.SlotPath,
		ValuePath: s.ValuePath,
		Source:    doc,
	}
}

// WritesMappings reports whether the spec's strategy writes the Mapping Table
func (s DirectiveSpec) WritesMappings() bool {
	plan, err := mapping.Strategy(s.Strategy).Plan()
	return err == nil && plan.WritesMappings
}

// DirectiveTransformer implements Transformer from declarative directive
// specs over registered sources
type DirectiveTransformer struct {
	sources    map[string]SourceProvider
	directives map[string]DirectiveSpec
	content    []string
	mappings   []string
	auth       *AuthResult
	logger     *zap.Logger
}

// TransformerOption configures a DirectiveTransformer
type TransformerOption func(*DirectiveTransformer)

// WithTransformerLogger sets the logger
func WithTransformerLogger(logger *zap.Logger) TransformerOption {
	return func(t *DirectiveTransformer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewDirectiveTransformer validates specs against the sources and splits
// them into content and mapping directives, keeping their order
func NewDirectiveTransformer(sources map[string]SourceProvider, specs []DirectiveSpec, opts ...TransformerOption) (*DirectiveTransformer, error) {
	t := &DirectiveTransformer{
		sources:    sources,
		directives: make(map[string]DirectiveSpec, len(specs)),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	for i, spec := range specs {
		if strings.TrimSpace(spec.Name) == "" {
			return nil, errors.Newf("directive %d has no name", i)
		}
		if _, dup := t.directives[spec.Name]; dup {
			return nil, errors.Newf("directive %q is defined twice", spec.Name)
		}
		if _, ok := sources[spec.Source]; !ok {
			return nil, errors.Newf("directive %q uses unknown source %q", spec.Name, spec.Source)
		}
		if !mapping.Strategy(spec.Strategy).Valid() {
			return nil, errors.Wrapf(mapping.ErrInvalidStrategy, "directive %q has strategy %d", spec.Name, spec.Strategy)
		}
		t.directives[spec.Name] = spec
		if spec.WritesMappings() {
			t.mappings = append(t.mappings, spec.Name)
		} else {
			t.content = append(t.content, spec.Name)
		}
	}
	return t, nil
}

// DoAuthentication implements Transformer
func (t *DirectiveTransformer) DoAuthentication(ctx context.Context, auth Authenticator, creds Credentials) (*AuthResult, error) {
	if auth == nil {
		auth = NoopAuthenticator{}
	}
	result, err := auth.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}
	t.auth = result
	t.logger.Debug("authenticated", zap.String("method", result.Method))
	return result, nil
}

// GetData implements Transformer
func (t *DirectiveTransformer) GetData(ctx context.Context, sourceID, location string) (*pathutil.Document, error) {
	source, ok := t.sources[sourceID]
	if !ok {
		return nil, NewSourceError(sourceID, "fetch", "source is not configured", nil)
	}
	req := FetchRequest{Location: location}
	if t.auth != nil {
		req.Headers = t.auth.Headers
	}
	doc, err := source.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("fetched document", zap.String("source", sourceID), zap.String("location", location))
	return doc, nil
}

// SetMappedContent implements Transformer
func (t *DirectiveTransformer) SetMappedContent(ctx context.Context, pathKey string, target Applier) (*mapping.Result, error) {
	return t.apply(ctx, pathKey, false, target)
}

// SetMappedMappings implements Transformer
func (t *DirectiveTransformer) SetMappedMappings(ctx context.Context, pathKey string, target Applier) (*mapping.Result, error) {
	return t.apply(ctx, pathKey, true, target)
}

func (t *DirectiveTransformer) apply(ctx context.Context, pathKey string, mappings bool, target Applier) (*mapping.Result, error) {
	spec, ok := t.directives[pathKey]
	if !ok {
		return nil, errors.Newf("unknown directive %q", pathKey)
	}
	if spec.WritesMappings() != mappings {
		return nil, errors.Wrapf(ErrWrongDirectiveFamily, "directive %q (strategy %d)", pathKey, spec.Strategy)
	}

	doc, err := t.GetData(ctx, spec.Source, spec.Location)
	if err != nil {
		return nil, errors.Wrapf(err, "directive %q", pathKey)
	}
	return target.Apply(spec.Directive(doc))
}

// ContentKeys implements Transformer
func (t *DirectiveTransformer) ContentKeys() []string {
	return append([]string(nil), t.content...)
}

// MappingKeys implements Transformer
func (t *DirectiveTransformer) MappingKeys() []string {
	return append([]string(nil), t.mappings...)
}

// Close closes every source
func (t *DirectiveTransformer) Close() error {
	var errs []string
	for id, source := range t.sources {
		if err := source.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", id, err))
		}
	}
	if len(errs) > 0 {
		return errors.Newf("closing sources: %s", strings.Join(errs, "; "))
	}
	return nil
}
