package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/amor/amor-go/internal/testutils"
	"github.com/amor/amor-go/store"
)

const testPlan = `
sources:
  - source_id: feed
    type: file
    config: {dir: .}
directives:
  - {name: titles, source: feed, path: sample.json, strategy: 1, id_path: "data[*].feed.id", value_path: "data[*].feed.title"}
  - {name: links, source: feed, path: sample.json, strategy: 9, value_path: "data[*].feed.url"}
`

func writeTestPlan(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.json"), []byte(testutils.SampleFeedJSON), 0o644))
	path := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunApply(t *testing.T) {
	planPath := writeTestPlan(t, testPlan)
	var out bytes.Buffer

	err := runApply(context.Background(), applyOptions{PlanPath: planPath}, &out, zaptest.NewLogger(t))
	require.NoError(t, err)

	snap, err := store.ParseSnapshot(out.Bytes())
	require.NoError(t, err)
	assert.Len(t, snap.Content, 10)
	assert.Equal(t, "title3", snap.Content[3])
	assert.Equal(t, "url1", snap.Content[6])
	assert.Equal(t, store.Single(6), snap.Mappings["slot-1"])
}

func TestRunApplyWithContentAndOutput(t *testing.T) {
	planPath := writeTestPlan(t, testPlan)
	dir := filepath.Dir(planPath)
	content := filepath.Join(dir, "defaults.json")
	require.NoError(t, os.WriteFile(content, []byte(`{"content": {"1": "kept"}, "mappings": {}}`), 0o644))
	output := filepath.Join(dir, "tables.json")

	no := false
	err := runApply(context.Background(), applyOptions{
		PlanPath:    planPath,
		ContentPath: content,
		OutputPath:  output,
		Overwrite:   &no,
	}, &bytes.Buffer{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	snap, err := store.ParseSnapshot(data)
	require.NoError(t, err)
	// record 1 conflicts and is skipped, the rest is applied
	assert.Equal(t, "kept", snap.Content[1])
	assert.Equal(t, "title2", snap.Content[2])

	yes := true
	err = runApply(context.Background(), applyOptions{
		PlanPath:    planPath,
		ContentPath: content,
		OutputPath:  output,
		Overwrite:   &no,
		FailFast:    &yes,
	}, &bytes.Buffer{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestRunApplyErrors(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	assert.Error(t, runApply(ctx, applyOptions{}, &bytes.Buffer{}, logger))
	assert.Error(t, runApply(ctx, applyOptions{PlanPath: filepath.Join(t.TempDir(), "none.yaml")}, &bytes.Buffer{}, logger))

	static := writeTestPlan(t, `
sources: [{source_id: inline, type: static, config: {documents: {a.json: {ids: [1]}}}}]
directives: [{name: a, source: inline, path: a.json, strategy: 2, value_path: "ids[*]"}]
`)
	err := runApply(ctx, applyOptions{PlanPath: static, Watch: true}, &bytes.Buffer{}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file source")
}

func TestRunExtract(t *testing.T) {
	var out bytes.Buffer
	err := runExtract("data[*].feed.url", "-", "", strings.NewReader(testutils.TwoFeedJSON), &out)
	require.NoError(t, err)
	assert.Equal(t, "\"u1\"\n\"u2\"\n", out.String())

	out.Reset()
	err = runExtract("$[*].id", "-", "ndjson", strings.NewReader("{\"id\":4}\n{\"id\":5}\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "4\n5\n", out.String())

	assert.Error(t, runExtract("data[", "-", "", strings.NewReader(testutils.TwoFeedJSON), &out))
	assert.Error(t, runExtract("a", filepath.Join(t.TempDir(), "x.json"), "", nil, &out))
}

func TestPrintStrategies(t *testing.T) {
	var out bytes.Buffer
	printStrategies(&out)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 9)
	assert.True(t, strings.HasPrefix(lines[0], "ContentByID"))
	assert.Contains(t, lines[8], "9: writes content+mappings; id synthesized; slot synthesized")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "amorc dev\n", out.String())
}

func TestPrintSources(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printSources(&out, nil))
	text := out.String()
	for _, sourceType := range []string{"file", "http", "redis", "s3", "static"} {
		assert.Contains(t, text, sourceType+"\n")
	}
	assert.Regexp(t, `bucket\s+\(string, required\)\s+S3 bucket name`, text)

	out.Reset()
	require.NoError(t, printSources(&out, []string{"file"}))
	assert.True(t, strings.HasPrefix(out.String(), "file\n  dir"))

	assert.Error(t, printSources(&out, []string{"carrier-pigeon"}))
}
