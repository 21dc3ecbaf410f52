package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amor/amor-go/adapters"
	"github.com/amor/amor-go/pathutil"
)

// Source fetches documents from an HTTP API with GET requests
type Source struct {
	config *Config
	base   *url.URL
	client *http.Client
}

// Config holds HTTP source configuration
type Config struct {
	SourceID     string            `json:"source_id" yaml:"source_id"`
	BaseURL      string            `json:"base_url" yaml:"base_url"`
	Headers      map[string]string `json:"headers" yaml:"headers"`
	Format       string            `json:"format" yaml:"format"`
	Timeout      time.Duration     `json:"timeout" yaml:"timeout"`
	MaxBodyBytes int64             `json:"max_body_bytes" yaml:"max_body_bytes"`
}

// NewSource creates a new HTTP source
func NewSource(config *Config) (*Source, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxBodyBytes == 0 {
		config.MaxBodyBytes = 10 * 1024 * 1024 // 10MB
	}

	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base_url: %w", err)
	}

	return &Source{
		config: config,
		base:   base,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

func validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}
	if config.SourceID == "" {
		return fmt.Errorf("source ID is required")
	}
	if !strings.HasPrefix(config.BaseURL, "http://") && !strings.HasPrefix(config.BaseURL, "https://") {
		return fmt.Errorf("base_url must be an http or https URL: %q", config.BaseURL)
	}
	return nil
}

// URL resolves a location against the base URL
func (s *Source) URL(location string) (string, error) {
	ref, err := url.Parse(location)
	if err != nil {
		return "", adapters.NewSourceError(s.config.SourceID, "resolve", "invalid location "+location, err)
	}
	return s.base.ResolveReference(ref).String(), nil
}

// Fetch implements adapters.SourceProvider
func (s *Source) Fetch(ctx context.Context, req adapters.FetchRequest) (*pathutil.Document, error) {
	target, err := s.URL(req.Location)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, adapters.NewSourceError(s.config.SourceID, "fetch", "building request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range s.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, adapters.NewSourceError(s.config.SourceID, "fetch", "GET "+target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, adapters.NewSourceError(s.config.SourceID, "fetch",
			fmt.Sprintf("GET %s returned %d", target, resp.StatusCode), nil)
	}

	payload, err := adapters.ReadAll(resp.Body, s.config.MaxBodyBytes)
	if err != nil {
		return nil, adapters.NewSourceError(s.config.SourceID, "fetch", "reading body", err)
	}

	doc, err := adapters.DecodeDocument(payload, s.format(resp))
	if err != nil {
		return nil, adapters.NewSourceError(s.config.SourceID, "decode", target, err)
	}
	return doc, nil
}

func (s *Source) format(resp *http.Response) string {
	if s.config.Format != "" {
		return s.config.Format
	}
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "ndjson") || strings.Contains(contentType, "jsonl") {
		return adapters.FormatNDJSON
	}
	return adapters.FormatFromName(resp.Request.URL.Path)
}

// GetMetadata implements adapters.SourceProvider
func (s *Source) GetMetadata() adapters.SourceMetadata {
	return adapters.SourceMetadata{
		SourceID:   s.config.SourceID,
		SourceType: "http",
		Formats:    []string{adapters.FormatJSON, adapters.FormatNDJSON},
		Config: map[string]string{
			"base_url": s.config.BaseURL,
			"timeout":  s.config.Timeout.String(),
		},
		Tags: []string{"http", "api"},
	}
}

// Close implements adapters.SourceProvider
func (s *Source) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// Factory for HTTP sources
type Factory struct{}

func (f *Factory) Create(config adapters.SourceConfig) (adapters.SourceProvider, error) {
	return NewSource(&Config{
		SourceID:     config.SourceID,
		BaseURL:      adapters.ConfigString(config.Config, "base_url"),
		Headers:      adapters.ConfigStringMap(config.Config, "headers"),
		Format:       adapters.ConfigString(config.Config, "format"),
		Timeout:      adapters.ConfigDuration(config.Config, "timeout"),
		MaxBodyBytes: adapters.ConfigInt64(config.Config, "max_body_bytes"),
	})
}

func (f *Factory) ValidateConfig(config adapters.SourceConfig) error {
	if adapters.ConfigString(config.Config, "base_url") == "" {
		return fmt.Errorf("base_url is required")
	}
	return nil
}

func (f *Factory) GetConfigSchema() adapters.ConfigSchema {
	return adapters.ConfigSchema{
		Properties: map[string]adapters.ConfigProperty{
			"base_url": {
				Type:        "string",
				Description: "Base URL that directive paths are resolved against",
				Examples:    []string{"https://api.example.com/v1/", "http://localhost:8080/"},
			},
			"headers": {
				Type:        "object",
				Description: "Static headers sent with every request",
			},
			"format": {
				Type:        "string",
				Description: "json or ndjson; guessed from the response when empty",
			},
			"timeout": {
				Type:        "string",
				Description: "Request timeout (e.g., 10s)",
				Default:     "30s",
			},
			"max_body_bytes": {
				Type:        "int",
				Description: "Maximum response size in bytes",
			},
		},
		Required: []string{"base_url"},
	}
}

func init() {
	adapters.RegisterSourceType("http", &Factory{})
}
