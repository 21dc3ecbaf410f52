package adapters

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/parquet-go/parquet-go"

	"github.com/amor/amor-go/pathutil"
)

// Payload formats understood by DecodeDocument
const (
	FormatJSON    = "json"
	FormatNDJSON  = "ndjson"
	FormatParquet = "parquet"
)

// DecodeDocument turns a fetched payload into a document. JSON is taken as
// is; NDJSON lines and Parquet rows become a top-level array.
func DecodeDocument(payload []byte, format string) (*pathutil.Document, error) {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return pathutil.NewDocumentFromJSON(payload)
	case FormatNDJSON, "jsonl":
		rows, err := decodeNDJSON(payload)
		if err != nil {
			return nil, err
		}
		return pathutil.NewDocument(rows)
	case FormatParquet:
		rows, err := decodeParquet(payload)
		if err != nil {
			return nil, err
		}
		return pathutil.NewDocument(rows)
	default:
		return nil, errors.Newf("unsupported payload format %q", format)
	}
}

// FormatFromName guesses a payload format from a file or object name
func FormatFromName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".ndjson"), strings.HasSuffix(lower, ".jsonl"):
		return FormatNDJSON
	case strings.HasSuffix(lower, ".parquet"):
		return FormatParquet
	default:
		return FormatJSON
	}
}

func decodeNDJSON(payload []byte) ([]json.RawMessage, error) {
	reader := bufio.NewScanner(bytes.NewReader(payload))
	buf := make([]byte, 0, 64*1024)
	reader.Buffer(buf, 10*1024*1024)

	rows := make([]json.RawMessage, 0)
	line := 0
	for reader.Scan() {
		line++
		text := bytes.TrimSpace(reader.Bytes())
		if len(text) == 0 {
			continue
		}
		if !json.Valid(text) {
			return nil, errors.Wrapf(pathutil.ErrInvalidDocument, "ndjson line %d", line)
		}
		rows = append(rows, json.RawMessage(append([]byte(nil), text...)))
	}
	if err := reader.Err(); err != nil {
		return nil, errors.Wrap(err, "reading ndjson")
	}
	return rows, nil
}

func decodeParquet(payload []byte) ([]map[string]interface{}, error) {
	if _, err := parquet.OpenFile(bytes.NewReader(payload), int64(len(payload))); err != nil {
		return nil, errors.Wrap(err, "opening parquet payload")
	}
	reader := parquet.NewGenericReader[map[string]interface{}](bytes.NewReader(payload))
	defer reader.Close()

	records := make([]map[string]interface{}, 0)
	batch := make([]map[string]interface{}, 256)

	for {
		n, err := reader.Read(batch)
		if n > 0 {
			records = append(records, batch[:n]...)
			batch = make([]map[string]interface{}, len(batch))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading parquet rows")
		}
	}

	return records, nil
}

// ReadAll reads at most limit bytes, failing when the payload is larger
func ReadAll(reader io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(reader)
	}
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errors.Newf("payload exceeds %d bytes", limit)
	}
	return data, nil
}
