package adapters

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/amor/amor-go/pathutil"
)

// StaticSource serves documents held in memory. Config key "documents" maps
// locations to inline JSON values.
type StaticSource struct {
	sourceID string
	mu       sync.RWMutex
	docs     map[string]*pathutil.Document
}

// NewStaticSource creates a source over the given documents
func NewStaticSource(sourceID string, docs map[string]*pathutil.Document) *StaticSource {
	s := &StaticSource{sourceID: sourceID, docs: make(map[string]*pathutil.Document, len(docs))}
	for k, v := range docs {
		s.docs[k] = v
	}
	return s
}

// Put adds or replaces a document
func (s *StaticSource) Put(location string, doc *pathutil.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[location] = doc
}

// Fetch implements SourceProvider
func (s *StaticSource) Fetch(ctx context.Context, req FetchRequest) (*pathutil.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[req.Location]
	if !ok {
		return nil, NewSourceError(s.sourceID, "fetch", "no document at "+req.Location, nil)
	}
	return doc, nil
}

// GetMetadata implements SourceProvider
func (s *StaticSource) GetMetadata() SourceMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	locations := make([]string, 0, len(s.docs))
	for k := range s.docs {
		locations = append(locations, k)
	}
	sort.Strings(locations)
	return SourceMetadata{
		SourceID:   s.sourceID,
		SourceType: "static",
		Formats:    []string{FormatJSON},
		Config:     map[string]string{"documents": strings.Join(locations, ",")},
		Tags:       []string{"inline"},
	}
}

// Close implements SourceProvider
func (s *StaticSource) Close() error {
	return nil
}

// StaticFactory creates static sources from plan files
type StaticFactory struct{}

func (f *StaticFactory) Create(config SourceConfig) (SourceProvider, error) {
	raw, _ := config.Config["documents"].(map[string]interface{})
	docs := make(map[string]*pathutil.Document, len(raw))
	for location, value := range raw {
		doc, err := pathutil.NewDocument(value)
		if err != nil {
			return nil, NewSourceError(config.SourceID, "create", "invalid document "+location, err)
		}
		docs[location] = doc
	}
	return NewStaticSource(config.SourceID, docs), nil
}

func (f *StaticFactory) ValidateConfig(config SourceConfig) error {
	if v, ok := config.Config["documents"]; ok {
		if _, isMap := v.(map[string]interface{}); !isMap {
			return NewSourceError(config.SourceID, "validate", "documents must be a map", nil)
		}
	}
	return nil
}

func (f *StaticFactory) GetConfigSchema() ConfigSchema {
	return ConfigSchema{
		Properties: map[string]ConfigProperty{
			"documents": {
				Type:        "object",
				Description: "Inline documents keyed by location",
			},
		},
	}
}

func init() {
	RegisterSourceType("static", &StaticFactory{})
}
