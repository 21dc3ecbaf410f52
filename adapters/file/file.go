package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/amor/amor-go/adapters"
	"github.com/amor/amor-go/pathutil"
)

// Source reads documents from files below a base directory
type Source struct {
	config *Config
}

// Config holds file source configuration
type Config struct {
	SourceID    string `json:"source_id" yaml:"source_id"`
	Dir         string `json:"dir" yaml:"dir"`
	Format      string `json:"format" yaml:"format"` // "", "json", "ndjson" or "parquet"
	MaxFileSize int64  `json:"max_file_size" yaml:"max_file_size"`
}

// Event reports a change to a watched document
type Event struct {
	Location  string
	Operation string
	Err       error
}

// NewSource creates a file source
func NewSource(config *Config) (*Source, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Source{config: config}, nil
}

func validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}
	if config.Dir == "" {
		return fmt.Errorf("dir is required")
	}
	info, err := os.Stat(config.Dir)
	if err != nil {
		return fmt.Errorf("dir %s: %w", config.Dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", config.Dir)
	}
	if config.MaxFileSize == 0 {
		config.MaxFileSize = 10 * 1024 * 1024 // 10MB default
	}
	return nil
}

// Resolve maps a location to a file path, refusing paths outside Dir
func (s *Source) Resolve(location string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(location))
	if location == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", adapters.NewSourceError(s.config.SourceID, "resolve", fmt.Sprintf("location %q is outside %s", location, s.config.Dir), nil)
	}
	return filepath.Join(s.config.Dir, clean), nil
}

// Fetch implements adapters.SourceProvider
func (s *Source) Fetch(ctx context.Context, req adapters.FetchRequest) (*pathutil.Document, error) {
	path, err := s.Resolve(req.Location)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, adapters.NewSourceError(s.config.SourceID, "fetch", "opening "+req.Location, err)
	}
	defer f.Close()

	payload, err := adapters.ReadAll(f, s.config.MaxFileSize)
	if err != nil {
		return nil, adapters.NewSourceError(s.config.SourceID, "fetch", "reading "+req.Location, err)
	}

	format := s.config.Format
	if format == "" {
		format = adapters.FormatFromName(req.Location)
	}
	doc, err := adapters.DecodeDocument(payload, format)
	if err != nil {
		return nil, adapters.NewSourceError(s.config.SourceID, "decode", req.Location, err)
	}
	return doc, nil
}

// Watch reports writes to the given locations (all files when none are
// given) until ctx is done
func (s *Source) Watch(ctx context.Context, locations ...string) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(s.config.Dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", s.config.Dir, err)
	}

	wanted := make(map[string]string, len(locations))
	for _, location := range locations {
		path, err := s.Resolve(location)
		if err != nil {
			watcher.Close()
			return nil, err
		}
		wanted[path] = location
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				op := operationName(event.Op)
				if op == "" {
					continue
				}
				location, ok := wanted[filepath.Clean(event.Name)]
				if len(wanted) > 0 && !ok {
					continue
				}
				if !ok {
					location, _ = filepath.Rel(s.config.Dir, event.Name)
				}
				select {
				case events <- Event{Location: location, Operation: op}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				select {
				case events <- Event{Err: err}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

// operationName returns the events that can change a document's content
func operationName(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create == fsnotify.Create:
		return "CREATE"
	case op&fsnotify.Write == fsnotify.Write:
		return "WRITE"
	case op&fsnotify.Rename == fsnotify.Rename:
		return "RENAME"
	default:
		return ""
	}
}

// GetMetadata implements adapters.SourceProvider
func (s *Source) GetMetadata() adapters.SourceMetadata {
	return adapters.SourceMetadata{
		SourceID:   s.config.SourceID,
		SourceType: "file",
		Formats:    []string{adapters.FormatJSON, adapters.FormatNDJSON, adapters.FormatParquet},
		Config: map[string]string{
			"dir":    s.config.Dir,
			"format": s.config.Format,
		},
		Tags: []string{"filesystem"},
	}
}

// Close implements adapters.SourceProvider
func (s *Source) Close() error {
	return nil
}

// Factory for file sources
type Factory struct{}

func (f *Factory) Create(config adapters.SourceConfig) (adapters.SourceProvider, error) {
	return NewSource(&Config{
		SourceID:    config.SourceID,
		Dir:         adapters.ConfigString(config.Config, "dir"),
		Format:      adapters.ConfigString(config.Config, "format"),
		MaxFileSize: adapters.ConfigInt64(config.Config, "max_file_size"),
	})
}

func (f *Factory) ValidateConfig(config adapters.SourceConfig) error {
	if adapters.ConfigString(config.Config, "dir") == "" {
		return fmt.Errorf("dir is required")
	}
	return nil
}

func (f *Factory) GetConfigSchema() adapters.ConfigSchema {
	return adapters.ConfigSchema{
		Properties: map[string]adapters.ConfigProperty{
			"dir": {
				Type:        "string",
				Description: "Base directory holding the documents",
				Examples:    []string{"./data", "/var/lib/amor"},
			},
			"format": {
				Type:        "string",
				Description: "json, ndjson or parquet; guessed from the file name when empty",
			},
			"max_file_size": {
				Type:        "int",
				Description: "Maximum file size in bytes",
				Default:     10 * 1024 * 1024,
			},
		},
		Required: []string{"dir"},
	}
}

func init() {
	adapters.RegisterSourceType("file", &Factory{})
}
