package pathutil

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// ErrInvalidDocument is returned when source bytes are not valid JSON.
var ErrInvalidDocument = errors.New("invalid JSON document")

// Document is an immutable source document evaluated through gjson.
// A nil *Document behaves like the JSON literal null.
type Document struct {
	raw string
}

// NewDocumentFromJSON creates a document from raw JSON bytes
func NewDocumentFromJSON(data []byte) (*Document, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidDocument
	}
	return &Document{raw: string(data)}, nil
}

// MustDocument is like NewDocumentFromJSON but panics on invalid input.
func MustDocument(data string) *Document {
	doc, err := NewDocumentFromJSON([]byte(data))
	if err != nil {
		panic(err)
	}
	return doc
}

// NewDocument creates a document from an in-memory Go value (maps, slices,
// structs with json tags).
func NewDocument(v interface{}) (*Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling document")
	}
	return &Document{raw: string(data)}, nil
}

// NewDocumentFromProto creates a document from a Protocol Buffer message,
// using proto field names.
func NewDocumentFromProto(message proto.Message) (*Document, error) {
	marshaler := protojson.MarshalOptions{
		UseProtoNames:   true,
		EmitUnpopulated: false,
	}
	data, err := marshaler.Marshal(message)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling proto message")
	}
	return &Document{raw: string(data)}, nil
}

// Raw returns the document's JSON text
func (d *Document) Raw() string {
	if d == nil {
		return "null"
	}
	return d.raw
}

// Root returns the document root as a gjson result
func (d *Document) Root() gjson.Result {
	return gjson.Parse(d.Raw())
}

// Value decodes the whole document into Go values
func (d *Document) Value() interface{} {
	return ToInterface(d.Root())
}

// MarshalJSON implements json.Marshaler
func (d *Document) MarshalJSON() ([]byte, error) {
	return []byte(d.Raw()), nil
}

// ToInterface converts a gjson result into plain Go values. Integral numbers
// become int64, other numbers float64.
func ToInterface(result gjson.Result) interface{} {
	switch result.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		if result.Float() == float64(result.Int()) {
			return result.Int()
		}
		return result.Float()
	case gjson.String:
		return result.String()
	case gjson.JSON:
		if result.IsArray() {
			arr := result.Array()
			values := make([]interface{}, len(arr))
			for i, v := range arr {
				values[i] = ToInterface(v)
			}
			return values
		}
		m := result.Map()
		values := make(map[string]interface{}, len(m))
		for k, v := range m {
			values[k] = ToInterface(v)
		}
		return values
	default:
		return nil
	}
}
