package adapters

import (
	"time"
)

// ConfigString reads a string option from a generic source config
func ConfigString(config map[string]interface{}, key string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}

// ConfigBool reads a bool option from a generic source config
func ConfigBool(config map[string]interface{}, key string) bool {
	v, _ := config[key].(bool)
	return v
}

// ConfigInt64 reads an integer option. YAML decodes integers as int, JSON as
// float64, so both are accepted.
func ConfigInt64(config map[string]interface{}, key string) int64 {
	switch v := config[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// ConfigDuration reads a duration option written as "30s", "5m", ...
func ConfigDuration(config map[string]interface{}, key string) time.Duration {
	if v, ok := config[key].(string); ok {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return 0
}

// ConfigStringMap reads a string-to-string option such as static headers
func ConfigStringMap(config map[string]interface{}, key string) map[string]string {
	out := make(map[string]string)
	switch v := config[key].(type) {
	case map[string]interface{}:
		for k, val := range v {
			if s, ok := val.(string); ok {
				out[k] = s
			}
		}
	case map[string]string:
		for k, val := range v {
			out[k] = val
		}
	}
	return out
}
