package pathutil

import (
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// ErrUnsupportedValue marks an extracted value that cannot play the role it
// was extracted for.
var ErrUnsupportedValue = errors.New("unsupported value")

// ContentKey converts an extracted value to a content key. JSON integers
// >= 0 and strings holding a base-10 non-negative integer are accepted.
func ContentKey(r gjson.Result) (int64, error) {
	switch r.Type {
	case gjson.Number:
		if n, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
			return checkKey(n, r)
		}
		f := r.Float()
		if f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
			return 0, unsupported(r, "content key")
		}
		return checkKey(int64(f), r)
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimSpace(r.Str), 10, 64)
		if err != nil {
			return 0, unsupported(r, "content key")
		}
		return checkKey(n, r)
	default:
		return 0, unsupported(r, "content key")
	}
}

// ContentKeys converts an extracted value to one or more content keys. A JSON
// array yields its keys in order and reports list=true.
func ContentKeys(r gjson.Result) (keys []int64, list bool, err error) {
	if !r.IsArray() {
		key, err := ContentKey(r)
		if err != nil {
			return nil, false, err
		}
		return []int64{key}, false, nil
	}

	items := r.Array()
	if len(items) == 0 {
		return nil, true, unsupported(r, "content key list")
	}
	keys = make([]int64, 0, len(items))
	for _, item := range items {
		key, err := ContentKey(item)
		if err != nil {
			return nil, true, err
		}
		keys = append(keys, key)
	}
	return keys, true, nil
}

// SlotKey converts an extracted value to a slot key: strings as they are,
// numbers and booleans by their JSON text.
func SlotKey(r gjson.Result) (string, error) {
	switch r.Type {
	case gjson.String:
		if r.Str == "" {
			return "", unsupported(r, "slot key")
		}
		return r.Str, nil
	case gjson.Number:
		return r.Raw, nil
	case gjson.True:
		return "true", nil
	case gjson.False:
		return "false", nil
	default:
		return "", unsupported(r, "slot key")
	}
}

// ContentValue converts an extracted value to displayable content. Objects
// and arrays keep their raw JSON; null is rejected.
func ContentValue(r gjson.Result) (string, error) {
	switch r.Type {
	case gjson.String:
		return r.Str, nil
	case gjson.Number, gjson.JSON:
		return r.Raw, nil
	case gjson.True:
		return "true", nil
	case gjson.False:
		return "false", nil
	default:
		return "", unsupported(r, "content value")
	}
}

func checkKey(n int64, r gjson.Result) (int64, error) {
	if n < 0 {
		return 0, unsupported(r, "content key")
	}
	return n, nil
}

func unsupported(r gjson.Result, role string) error {
	raw := r.Raw
	if raw == "" {
		raw = "null"
	}
	if len(raw) > 64 {
		raw = raw[:61] + "..."
	}
	return errors.Wrapf(ErrUnsupportedValue, "%s cannot be used as %s", raw, role)
}
