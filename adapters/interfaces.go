package adapters

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/amor/amor-go/pathutil"
)

// SourceProvider supplies source documents for mapping directives
type SourceProvider interface {
	// Fetch returns the document stored at req.Location
	Fetch(ctx context.Context, req FetchRequest) (*pathutil.Document, error)

	// Source metadata
	GetMetadata() SourceMetadata

	// Close releases clients held by the provider
	Close() error
}

// FetchRequest names one document within a source
type FetchRequest struct {
	// Location is source specific: a file name, URL path, object key or
	// Redis key
	Location string
	// Headers carry authentication material from an AuthResult
	Headers map[string]string
}

// SourceMetadata provides information about document sources
type SourceMetadata struct {
	SourceID   string            `json:"source_id"`
	SourceType string            `json:"source_type"` // "file", "http", "s3", "redis", "static"
	Formats    []string          `json:"formats"`
	Config     map[string]string `json:"config,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
}

// SourceFactory creates instances of a specific source type
type SourceFactory interface {
	// Create a new source instance
	Create(config SourceConfig) (SourceProvider, error)

	// Validate configuration before creating
	ValidateConfig(config SourceConfig) error

	// Get configuration schema for this source type
	GetConfigSchema() ConfigSchema
}

// SourceConfig represents configuration for any source
type SourceConfig struct {
	SourceID string                 `json:"source_id" yaml:"source_id"`
	Type     string                 `json:"type" yaml:"type"`
	Config   map[string]interface{} `json:"config" yaml:"config"`
	Tags     []string               `json:"tags" yaml:"tags"`
}

// SourceTypeInfo provides information about a source type
type SourceTypeInfo struct {
	Type         string       `json:"type"`
	ConfigSchema ConfigSchema `json:"config_schema"`
}

// ConfigSchema describes the configuration schema for a source type
type ConfigSchema struct {
	Properties map[string]ConfigProperty `json:"properties"`
	Required   []string                  `json:"required"`
}

// Missing returns the required properties absent from config
func (c ConfigSchema) Missing(config map[string]interface{}) []string {
	var missing []string
	for _, name := range c.Required {
		if v, ok := config[name]; !ok || v == nil || v == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// ConfigProperty describes a single configuration property
type ConfigProperty struct {
	Type        string      `json:"type"` // "string", "int", "bool", "array", "object"
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
	Examples    []string    `json:"examples,omitempty"`
}

// SourceError represents errors from source operations
type SourceError struct {
	SourceID  string `json:"source_id"`
	Operation string `json:"operation"`
	Message   string `json:"message"`
	Cause     error  `json:"-"`
}

func (e *SourceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("source %s: %s: %s: %v", e.SourceID, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("source %s: %s: %s", e.SourceID, e.Operation, e.Message)
}

func (e *SourceError) Unwrap() error {
	return e.Cause
}

// NewSourceError creates a new source error
func NewSourceError(sourceID, operation, message string, cause error) *SourceError {
	return &SourceError{
		SourceID:  sourceID,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// DefaultSourceRegistry provides a simple in-memory registry
type DefaultSourceRegistry struct {
	mu        sync.RWMutex
	factories map[string]SourceFactory
}

// NewDefaultSourceRegistry creates a new default registry
func NewDefaultSourceRegistry() *DefaultSourceRegistry {
	return &DefaultSourceRegistry{
		factories: make(map[string]SourceFactory),
	}
}

func (r *DefaultSourceRegistry) RegisterSourceType(sourceType string, factory SourceFactory) error {
	if sourceType == "" {
		return fmt.Errorf("source type cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[sourceType] = factory
	return nil
}

func (r *DefaultSourceRegistry) CreateSource(config SourceConfig) (SourceProvider, error) {
	r.mu.RLock()
	factory, exists := r.factories[config.Type]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unknown source type: %s", config.Type)
	}

	if missing := factory.GetConfigSchema().Missing(config.Config); len(missing) > 0 {
		return nil, fmt.Errorf("invalid config for %s: missing %s", config.Type, strings.Join(missing, ", "))
	}
	if err := factory.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config for %s: %w", config.Type, err)
	}

	return factory.Create(config)
}

func (r *DefaultSourceRegistry) GetAvailableTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (r *DefaultSourceRegistry) GetTypeInfo(sourceType string) SourceTypeInfo {
	r.mu.RLock()
	factory, exists := r.factories[sourceType]
	r.mu.RUnlock()
	if !exists {
		return SourceTypeInfo{}
	}

	return SourceTypeInfo{
		Type:         sourceType,
		ConfigSchema: factory.GetConfigSchema(),
	}
}

// Package-level convenience functions
var defaultRegistry = NewDefaultSourceRegistry()

// RegisterSourceType registers a source type globally
func RegisterSourceType(sourceType string, factory SourceFactory) error {
	return defaultRegistry.RegisterSourceType(sourceType, factory)
}

// CreateSource creates a source from configuration using the global registry
func CreateSource(config SourceConfig) (SourceProvider, error) {
	return defaultRegistry.CreateSource(config)
}

// GetAvailableSourceTypes returns all registered source types
func GetAvailableSourceTypes() []string {
	return defaultRegistry.GetAvailableTypes()
}

// GetSourceTypeInfo returns the config schema of a registered source type
func GetSourceTypeInfo(sourceType string) SourceTypeInfo {
	return defaultRegistry.GetTypeInfo(sourceType)
}
