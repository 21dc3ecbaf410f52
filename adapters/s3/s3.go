package s3

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/amor/amor-go/adapters"
	"github.com/amor/amor-go/pathutil"
)

// ObjectAPI is the part of the S3 client the source uses
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Source reads documents from S3 objects
type Source struct {
	config *Config

	mu     sync.Mutex
	client ObjectAPI
}

// Config holds S3 source configuration.
type Config struct {
	SourceID       string        `json:"source_id" yaml:"source_id"`
	Region         string        `json:"region" yaml:"region"`
	Bucket         string        `json:"bucket" yaml:"bucket"`
	Prefix         string        `json:"prefix" yaml:"prefix"`
	Format         string        `json:"format" yaml:"format"` // "json", "ndjson", or "parquet"
	MaxObjectBytes int64         `json:"max_object_bytes" yaml:"max_object_bytes"`
	Endpoint       string        `json:"endpoint" yaml:"endpoint"`
	ForcePathStyle bool          `json:"force_path_style" yaml:"force_path_style"`
	AccessKey      string        `json:"access_key" yaml:"access_key"`
	SecretKey      string        `json:"secret_key" yaml:"secret_key"`
	SessionToken   string        `json:"session_token" yaml:"session_token"`
	Timeout        time.Duration `json:"timeout" yaml:"timeout"`
}

// NewSource creates a new S3 source. The AWS client is built on first use.
func NewSource(config *Config) (*Source, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return &Source{config: config}, nil
}

// NewSourceWithClient creates a source over an existing client
func NewSourceWithClient(config *Config, client ObjectAPI) (*Source, error) {
	src, err := NewSource(config)
	if err != nil {
		return nil, err
	}
	src.client = client
	return src, nil
}

func validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}
	if config.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxObjectBytes == 0 {
		config.MaxObjectBytes = 10 * 1024 * 1024 // 10MB
	}
	return nil
}

func (s *Source) connect(ctx context.Context) (ObjectAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(s.config.Region),
	}

	if s.config.AccessKey != "" && s.config.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(
			s.config.AccessKey,
			s.config.SecretKey,
			s.config.SessionToken,
		)
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s.client = s3.NewFromConfig(cfg, func(options *s3.Options) {
		options.UsePathStyle = s.config.ForcePathStyle
		if s.config.Endpoint != "" {
			options.BaseEndpoint = aws.String(s.config.Endpoint)
		}
	})
	return s.client, nil
}

// Key maps a location to an object key below the configured prefix
func (s *Source) Key(location string) string {
	if s.config.Prefix == "" {
		return strings.TrimPrefix(location, "/")
	}
	return path.Join(s.config.Prefix, location)
}

// Fetch implements adapters.SourceProvider
func (s *Source) Fetch(ctx context.Context, req adapters.FetchRequest) (*pathutil.Document, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, adapters.NewSourceError(s.config.SourceID, "connect", "creating s3 client", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	key := s.Key(req.Location)
	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, adapters.NewSourceError(s.config.SourceID, "fetch", "s3://"+s.config.Bucket+"/"+key, err)
	}
	defer resp.Body.Close()

	if resp.ContentLength != nil && *resp.ContentLength > s.config.MaxObjectBytes {
		return nil, adapters.NewSourceError(s.config.SourceID, "fetch",
			fmt.Sprintf("%s is %d bytes, limit %d", key, *resp.ContentLength, s.config.MaxObjectBytes), nil)
	}

	payload, err := adapters.ReadAll(resp.Body, s.config.MaxObjectBytes)
	if err != nil {
		return nil, adapters.NewSourceError(s.config.SourceID, "fetch", "reading "+key, err)
	}

	format := s.config.Format
	if format == "" {
		format = adapters.FormatFromName(key)
	}
	doc, err := adapters.DecodeDocument(payload, format)
	if err != nil {
		return nil, adapters.NewSourceError(s.config.SourceID, "decode", key, err)
	}
	return doc, nil
}

// GetMetadata returns source metadata.
func (s *Source) GetMetadata() adapters.SourceMetadata {
	return adapters.SourceMetadata{
		SourceID:   s.config.SourceID,
		SourceType: "s3",
		Formats:    []string{adapters.FormatJSON, adapters.FormatNDJSON, adapters.FormatParquet},
		Config: map[string]string{
			"bucket":   s.config.Bucket,
			"prefix":   s.config.Prefix,
			"region":   s.config.Region,
			"endpoint": s.config.Endpoint,
		},
		Tags: []string{"s3", "object-storage"},
	}
}

// Close implements adapters.SourceProvider
func (s *Source) Close() error {
	return nil
}

// Factory creates S3 sources from generic config.
type Factory struct{}

func (f *Factory) Create(config adapters.SourceConfig) (adapters.SourceProvider, error) {
	return NewSource(&Config{
		SourceID:       config.SourceID,
		Region:         adapters.ConfigString(config.Config, "region"),
		Bucket:         adapters.ConfigString(config.Config, "bucket"),
		Prefix:         adapters.ConfigString(config.Config, "prefix"),
		Format:         adapters.ConfigString(config.Config, "format"),
		MaxObjectBytes: adapters.ConfigInt64(config.Config, "max_object_bytes"),
		Endpoint:       adapters.ConfigString(config.Config, "endpoint"),
		ForcePathStyle: adapters.ConfigBool(config.Config, "force_path_style"),
		AccessKey:      adapters.ConfigString(config.Config, "access_key"),
		SecretKey:      adapters.ConfigString(config.Config, "secret_key"),
		SessionToken:   adapters.ConfigString(config.Config, "session_token"),
		Timeout:        adapters.ConfigDuration(config.Config, "timeout"),
	})
}

func (f *Factory) ValidateConfig(config adapters.SourceConfig) error {
	if _, ok := config.Config["bucket"]; !ok {
		return fmt.Errorf("bucket is required")
	}
	return nil
}

func (f *Factory) GetConfigSchema() adapters.ConfigSchema {
	return adapters.ConfigSchema{
		Properties: map[string]adapters.ConfigProperty{
			"region": {
				Type:        "string",
				Description: "AWS region (defaults to us-east-1)",
			},
			"bucket": {
				Type:        "string",
				Description: "S3 bucket name",
			},
			"prefix": {
				Type:        "string",
				Description: "Key prefix that directive paths are joined to",
			},
			"format": {
				Type:        "string",
				Description: "json, ndjson, or parquet; guessed from the key when empty",
			},
			"max_object_bytes": {
				Type:        "int",
				Description: "Maximum object size in bytes",
			},
			"endpoint": {
				Type:        "string",
				Description: "Custom S3 endpoint (for MinIO, R2, etc.)",
			},
			"force_path_style": {
				Type:        "bool",
				Description: "Force path-style addressing (S3-compatible services)",
			},
			"access_key": {
				Type:        "string",
				Description: "Static access key (optional)",
			},
			"secret_key": {
				Type:        "string",
				Description: "Static secret key (optional)",
			},
			"session_token": {
				Type:        "string",
				Description: "Session token for temporary credentials",
			},
			"timeout": {
				Type:        "string",
				Description: "Per-request timeout (e.g., 30s)",
			},
		},
		Required: []string{"bucket"},
	}
}

func init() {
	adapters.RegisterSourceType("s3", &Factory{})
}
