package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/c360studio/semharvest/config"
	"github.com/c360studio/semharvest/harvest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveFiles_RecursiveGlob(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "a.md"), "# A")
	writeTestFile(t, filepath.Join(dir, "sub", "b.md"), "# B")
	writeTestFile(t, filepath.Join(dir, "sub", "c.html"), "<h1>C</h1>")
	writeTestFile(t, filepath.Join(dir, "notes.txt"), "plain")

	files, err := resolveFiles([]string{filepath.Join(dir, "**", "*.md")})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "a.md"), files[0])
	assert.Equal(t, filepath.Join(dir, "sub", "b.md"), files[1])
}

func TestResolveFiles_DeduplicatesOverlappingPatterns(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "a.md"), "# A")

	files, err := resolveFiles([]string{
		filepath.Join(dir, "*.md"),
		filepath.Join(dir, "a.md"),
	})
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestResolveFiles_LiteralPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.md")
	writeTestFile(t, path, "# A")

	files, err := resolveFiles([]string{path})
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestResolveFiles_MissingLiteralPath(t *testing.T) {
	_, err := resolveFiles([]string{filepath.Join(t.TempDir(), "missing.md")})
	assert.Error(t, err)
}

func TestResolveFiles_DirectoryLiteral(t *testing.T) {
	_, err := resolveFiles([]string{t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}

func TestResolveFiles_GlobWithoutMatches(t *testing.T) {
	files, err := resolveFiles([]string{filepath.Join(t.TempDir(), "*.md")})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestRunExtract_HumanSummary(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "guide.md"), "# Guide\n\nSee [docs](https://example.com/docs).\n")

	var out bytes.Buffer
	err := runExtract(context.Background(), &out, config.DefaultConfig(), discardLogger(),
		[]string{filepath.Join(dir, "*.md")}, extractOptions{})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "guide.md")
	assert.Contains(t, out.String(), "tokens")
	assert.Contains(t, out.String(), "0 issues")
}

func TestRunExtract_JSONOutput(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "notes.md"), "---\ntitle: Notes\n---\n\n# Heading\n\nBody text.\n")

	var out bytes.Buffer
	err := runExtract(context.Background(), &out, config.DefaultConfig(), discardLogger(),
		[]string{filepath.Join(dir, "notes.md")}, extractOptions{JSON: true})
	require.NoError(t, err)

	var res struct {
		Document harvest.DocumentMeta `json:"document"`
		Report   struct {
			RunID      string `json:"run_id"`
			TokenCount int    `json:"token_count"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))

	assert.True(t, strings.HasPrefix(res.Document.ID, "doc.notes."), "id: %s", res.Document.ID)
	assert.Equal(t, "Notes", res.Document.Title)
	assert.NotEmpty(t, res.Report.RunID)
	assert.Greater(t, res.Report.TokenCount, 0)
}

func TestRunExtract_HTMLFile(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "page.html"),
		"<html><head><title>Install Guide</title></head><body><main><h1>Install</h1><p>Run the installer.</p></main></body></html>")

	var out bytes.Buffer
	err := runExtract(context.Background(), &out, config.DefaultConfig(), discardLogger(),
		[]string{filepath.Join(dir, "page.html")}, extractOptions{JSON: true})
	require.NoError(t, err)

	var res struct {
		Document harvest.DocumentMeta `json:"document"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "Install Guide", res.Document.Title)
}

func TestRunExtract_NoMatches(t *testing.T) {
	err := runExtract(context.Background(), io.Discard, config.DefaultConfig(), discardLogger(),
		[]string{filepath.Join(t.TempDir(), "*.md")}, extractOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files match")
}

func TestRunExtract_PublishWithoutURL(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "a.md"), "# A")

	err := runExtract(context.Background(), io.Discard, config.DefaultConfig(), discardLogger(),
		[]string{filepath.Join(dir, "a.md")}, extractOptions{Publish: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats.url")
}

func TestRunExtract_OversizeDocumentFails(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "big.md"), "# Big\n\n"+strings.Repeat("word ", 64))

	cfg := config.DefaultConfig()
	cfg.Limits.MaxBytes = 16

	err := runExtract(context.Background(), io.Discard, cfg, discardLogger(),
		[]string{filepath.Join(dir, "big.md")}, extractOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 files failed")
}
