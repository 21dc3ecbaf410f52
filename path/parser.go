package path

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/cockroachdb/errors"
)

// ErrEmptyPath is returned when parsing an empty expression. Callers that
// treat an empty expression as "no extraction" must check for it first.
var ErrEmptyPath = errors.New("empty path")

// pathAST represents the parsed AST of a path
type pathAST struct {
	Head *segmentAST   `parser:"@@"`
	Tail []*segmentAST `parser:"( '.' @@ )*"`
}

// segmentAST is a dotted segment: an optional member name followed by subscripts
type segmentAST struct {
	Name       *string         `parser:"( @Ident | @Int )?"`
	Subscripts []*subscriptAST `parser:"( '[' @@ ']' )*"`
}

// subscriptAST is the content of one bracket pair
type subscriptAST struct {
	Wildcard bool    `parser:"  @'*'"`
	Index    *int    `parser:"| @Int"`
	Key      *string `parser:"| @String"`
}

var pathDefinition = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "whitespace", Pattern: `\s+`, Action: nil},
		{Name: "String", Pattern: `"(\\.|[^"\\])*"`, Action: nil},
		{Name: "Int", Pattern: `[0-9]+`, Action: nil},
		{Name: "Ident", Pattern: `[a-zA-Z_$][a-zA-Z0-9_$-]*`, Action: nil},
		{Name: "Punct", Pattern: `[.\[\]*]`, Action: nil},
	},
})

var parser = participle.MustBuild[pathAST](
	participle.Lexer(pathDefinition),
	participle.Elide("whitespace"),
)

// Parse parses a path expression such as `data[*].feed.id`.
//
// Supported syntax: dot-separated member names, `[n]` array positions,
// `[*]` array fan-out, `["any key"]` quoted member names and an optional
// leading `$` root marker. The bare expression `$` is the document root.
func Parse(expr string) (Path, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Path{}, ErrEmptyPath
	}
	switch {
	case expr == "$":
		return Path{}, nil
	case strings.HasPrefix(expr, "$."):
		expr = expr[2:]
	case strings.HasPrefix(expr, "$["):
		expr = expr[1:]
	}

	ast, err := parser.ParseString("", expr)
	if err != nil {
		return Path{}, errors.Wrapf(err, "failed to parse path %q", expr)
	}

	segments := append([]*segmentAST{ast.Head}, ast.Tail...)
	elements := make([]PathElement, 0, len(segments))
	for i, seg := range segments {
		if seg == nil || (seg.Name == nil && len(seg.Subscripts) == 0) {
			return Path{}, errors.Newf("path %q: empty segment at position %d", expr, i)
		}
		if seg.Name != nil {
			elements = append(elements, Field(*seg.Name))
		}
		for _, sub := range seg.Subscripts {
			switch {
			case sub.Wildcard:
				elements = append(elements, Wildcard())
			case sub.Index != nil:
				elements = append(elements, Index(*sub.Index))
			case sub.Key != nil:
				elements = append(elements, Field(unquote(*sub.Key)))
			}
		}
	}

	return Path{Elements: elements}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(expr string) Path {
	p, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Validate checks if a path expression is valid
func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}

func unquote(s string) string {
	if v, err := strconv.Unquote(s); err == nil {
		return v
	}
	return strings.Trim(s, `"`)
}
