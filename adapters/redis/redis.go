package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/amor/amor-go/adapters"
	"github.com/amor/amor-go/pathutil"
)

// Source reads documents stored as string values, or as fields of one hash
type Source struct {
	config *Config
	client *redis.Client
}

// Config holds configuration for a Redis source
type Config struct {
	SourceID   string        `json:"source_id" yaml:"source_id"`
	RedisAddr  string        `json:"redis_addr" yaml:"redis_addr"`
	RedisDB    int           `json:"redis_db" yaml:"redis_db"`
	Password   string        `json:"password" yaml:"password"`
	KeyPrefix  string        `json:"key_prefix" yaml:"key_prefix"`
	Hash       string        `json:"hash" yaml:"hash"`
	Format     string        `json:"format" yaml:"format"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
}

// NewSource creates a new Redis source. No connection is opened until the first fetch.
func NewSource(config *Config) (*Source, error) {
	if config == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if config.SourceID == "" {
		return nil, fmt.Errorf("source ID is required")
	}
	if config.RedisAddr == "" {
		config.RedisAddr = "localhost:6379"
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        config.RedisAddr,
		DB:          config.RedisDB,
		Password:    config.Password,
		DialTimeout: config.Timeout,
		ReadTimeout: config.Timeout,
		MaxRetries:  config.MaxRetries,
	})

	return &Source{config: config, client: client}, nil
}

// Key maps a location to the Redis key (or hash field) holding the document
func (s *Source) Key(location string) string {
	return s.config.KeyPrefix + location
}

// Fetch implements adapters.SourceProvider
func (s *Source) Fetch(ctx context.Context, req adapters.FetchRequest) (*pathutil.Document, error) {
	if req.Location == "" {
		return nil, adapters.NewSourceError(s.config.SourceID, "fetch", "empty location", nil)
	}

	key := s.Key(req.Location)
	var (
		payload []byte
		err     error
	)
	if s.config.Hash != "" {
		payload, err = s.client.HGet(ctx, s.config.Hash, key).Bytes()
	} else {
		payload, err = s.client.Get(ctx, key).Bytes()
	}
	if errors.Is(err, redis.Nil) {
		return nil, adapters.NewSourceError(s.config.SourceID, "fetch", "no value at "+key, err)
	}
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

// GetMetadata implements adapters.SourceProvider
func (s *Source) GetMetadata() adapters.SourceMetadata {
	return adapters.SourceMetadata{
		SourceID:   s.config.SourceID,
		SourceType: "redis",
		Formats:    []string{adapters.FormatJSON, adapters.FormatNDJSON},
		Config: map[string]string{
			"redis_addr": s.config.RedisAddr,
			"redis_db":   fmt.Sprintf("%d", s.config.RedisDB),
			"key_prefix": s.config.KeyPrefix,
			"hash":       s.config.Hash,
		},
		Tags: []string{"redis", "cache"},
	}
}

// Close implements adapters.SourceProvider
func (s *Source) Close() error {
	return s.client.Close()
}

// Factory creates Redis sources
type Factory struct{}

func (f *Factory) Create(config adapters.SourceConfig) (adapters.SourceProvider, error) {
	return NewSource(&Config{
		SourceID:   config.SourceID,
		RedisAddr:  adapters.ConfigString(config.Config, "redis_addr"),
		RedisDB:    int(adapters.ConfigInt64(config.Config, "redis_db")),
		Password:   adapters.ConfigString(config.Config, "password"),
		KeyPrefix:  adapters.ConfigString(config.Config, "key_prefix"),
		Hash:       adapters.ConfigString(config.Config, "hash"),
		Format:     adapters.ConfigString(config.Config, "format"),
		Timeout:    adapters.ConfigDuration(config.Config, "timeout"),
		MaxRetries: int(adapters.ConfigInt64(config.Config, "max_retries")),
	})
}

func (f *Factory) ValidateConfig(config adapters.SourceConfig) error {
	if db := adapters.ConfigInt64(config.Config, "redis_db"); db < 0 {
		return fmt.Errorf("redis_db must not be negative")
	}
	return nil
}

func (f *Factory) GetConfigSchema() adapters.ConfigSchema {
	return adapters.ConfigSchema{
		Properties: map[string]adapters.ConfigProperty{
			"redis_addr": {
				Type:        "string",
				Description: "Redis server address",
				Default:     "localhost:6379",
			},
			"redis_db": {
				Type:        "int",
				Description: "Redis database number",
				Default:     0,
			},
			"password": {
				Type:        "string",
				Description: "Redis password",
			},
			"key_prefix": {
				Type:        "string",
				Description: "Prefix prepended to every directive path",
			},
			"hash": {
				Type:        "string",
				Description: "Read fields of this hash instead of plain keys",
			},
			"format": {
				Type:        "string",
				Description: "json or ndjson",
			},
			"timeout": {
				Type:        "string",
				Description: "Dial and read timeout",
				Default:     "5s",
			},
		},
	}
}

func init() {
	adapters.RegisterSourceType("redis", &Factory{})
}
