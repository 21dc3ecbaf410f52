package pathutil

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/amor/amor-go/path"
)

// Extract evaluates a wildcard path expression against a document and
// returns the matched values in document order.
//
// An empty expression means "no extraction" and yields an empty sequence.
// Missing members, out-of-range positions and fan-out over non-arrays drop
// the branch instead of failing. Only a syntactically invalid expression
// returns an error.
func Extract(expr string, doc *Document) ([]gjson.Result, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	p, err := path.Parse(expr)
	if err != nil {
		return nil, err
	}
	return ExtractPath(p, doc), nil
}

// ExtractPath evaluates an already parsed path. Each step maps the current
// sequence to the concatenation of its per-item results, so nested wildcards
// come out depth-first in array index order.
func ExtractPath(p path.Path, doc *Document) []gjson.Result {
	current := []gjson.Result{doc.Root()}

	for _, elem := range p.Elements {
		next := make([]gjson.Result, 0, len(current))
		for _, item := range current {
			switch elem.Kind {
			case path.FieldElement:
				if v, ok := member(item, elem.Name); ok {
					next = append(next, v)
				}
			case path.IndexElement:
				if !item.IsArray() {
					continue
				}
				arr := item.Array()
				if elem.Index >= 0 && elem.Index < len(arr) {
					next = append(next, arr[elem.Index])
				}
			case path.WildcardElement:
				if item.IsArray() {
					next = append(next, item.Array()...)
				}
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}

	return current
}

// ExtractValues is Extract with every match converted to plain Go values.
func ExtractValues(expr string, doc *Document) ([]interface{}, error) {
	results, err := Extract(expr, doc)
	if err != nil {
		return nil, err
	}
	values := make([]interface{}, len(results))
	for i, r := range results {
		values[i] = ToInterface(r)
	}
	return values, nil
}

// member looks a key up by exact name. Keys are compared verbatim, so no
// gjson path escaping is involved.
func member(obj gjson.Result, name string) (gjson.Result, bool) {
	if !obj.IsObject() {
		return gjson.Result{}, false
	}
	var (
		found gjson.Result
		ok    bool
	)
	obj.ForEach(func(key, value gjson.Result) bool {
		if key.String() == name {
			found, ok = value, true
			return false
		}
		return true
	})
	return found, ok
}
