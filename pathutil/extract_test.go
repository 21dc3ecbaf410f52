package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedJSON = `{
	"data": [
		{"feed": {"id": 1, "title": "title1", "url": "u1", "tags": ["a", "b"]}},
		{"feed": {"id": 2, "title": "title2", "url": "u2", "tags": []}},
		{"other": true},
		{"feed": {"id": 3, "title": "title3", "url": "u3", "tags": ["c"]}}
	],
	"Meta Data": {"2. Symbol": "USDEUR"},
	"SMA": null
}`

func TestExtract(t *testing.T) {
	doc := MustDocument(feedJSON)

	tests := []struct {
		name string
		expr string
		want []interface{}
	}{
		{
			name: "wildcard skips elements missing the member",
			expr: "data[*].feed.id",
			want: []interface{}{int64(1), int64(2), int64(3)},
		},
		{
			name: "wildcard over strings",
			expr: "data[*].feed.url",
			want: []interface{}{"u1", "u2", "u3"},
		},
		{
			name: "nested wildcards are depth-first",
			expr: "data[*].feed.tags[*]",
			want: []interface{}{"a", "b", "c"},
		},
		{
			name: "array index",
			expr: "data[1].feed.title",
			want: []interface{}{"title2"},
		},
		{
			name: "index out of range",
			expr: "data[10].feed.title",
			want: []interface{}{},
		},
		{
			name: "missing member",
			expr: "data[*].feed.missing",
			want: []interface{}{},
		},
		{
			name: "wildcard over object yields nothing",
			expr: "data[0].feed[*]",
			want: []interface{}{},
		},
		{
			name: "quoted keys",
			expr: `["Meta Data"]["2. Symbol"]`,
			want: []interface{}{"USDEUR"},
		},
		{
			name: "present null is kept",
			expr: "SMA",
			want: []interface{}{nil},
		},
		{
			name: "empty expression is no extraction",
			expr: "",
			want: []interface{}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractValues(tt.expr, doc)
			require.NoError(t, err)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractInvalidPath(t *testing.T) {
	_, err := Extract("data[*", MustDocument(feedJSON))
	assert.Error(t, err)
}

func TestExtractRoot(t *testing.T) {
	doc := MustDocument(`[{"id": 7}, {"id": 8}]`)

	got, err := ExtractValues("$[*].id", doc)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(7), int64(8)}, got)

	got, err = ExtractValues("$", doc)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestExtractNilDocument(t *testing.T) {
	got, err := Extract("data[*].id", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtractParallelPathsStayAligned(t *testing.T) {
	doc := MustDocument(feedJSON)

	ids, err := Extract("data[*].feed.id", doc)
	require.NoError(t, err)
	urls, err := Extract("data[*].feed.url", doc)
	require.NoError(t, err)

	require.Len(t, ids, len(urls))
	for i := range ids {
		assert.Equal(t, "u"+ids[i].Raw, urls[i].String())
	}
}
