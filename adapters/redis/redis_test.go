package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amor/amor-go/adapters"
)

func TestFactory(t *testing.T) {
	src, err := adapters.CreateSource(adapters.SourceConfig{
		SourceID: "cache",
		Type:     "redis",
		Config: map[string]interface{}{
			"redis_addr": "127.0.0.1:6390",
			"redis_db":   2,
			"key_prefix": "amor:",
		},
	})
	require.NoError(t, err)
	defer src.Close()

	meta := src.GetMetadata()
	assert.Equal(t, "redis", meta.SourceType)
	assert.Equal(t, "2", meta.Config["redis_db"])
	assert.Equal(t, "amor:feed", src.(*Source).Key("feed"))

	_, err = adapters.CreateSource(adapters.SourceConfig{
		SourceID: "cache",
		Type:     "redis",
		Config:   map[string]interface{}{"redis_db": -1},
	})
	assert.Error(t, err)
}

func TestNewSourceDefaults(t *testing.T) {
	_, err := NewSource(nil)
	assert.Error(t, err)
	_, err = NewSource(&Config{})
	assert.Error(t, err)

	src, err := NewSource(&Config{SourceID: "cache"})
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, "localhost:6379", src.config.RedisAddr)
	assert.Equal(t, 5*time.Second, src.config.Timeout)
}

func TestFetchUnreachable(t *testing.T) {
	src, err := NewSource(&Config{
		SourceID:   "cache",
		RedisAddr:  "127.0.0.1:1",
		Timeout:    200 * time.Millisecond,
		MaxRetries: -1,
	})
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Fetch(context.Background(), adapters.FetchRequest{Location: ""})
	assert.Error(t, err)

	_, err = src.Fetch(context.Background(), adapters.FetchRequest{Location: "feed"})
	var sourceErr *adapters.SourceError
	require.ErrorAs(t, err, &sourceErr)
	assert.Equal(t, "fetch", sourceErr.Operation)
}
