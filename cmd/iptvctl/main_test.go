package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func sqliteEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("IPTV_DATABASE_DRIVER", "sqlite")
	t.Setenv("IPTV_SQLITE_PATH", filepath.Join(dir, "iptv.db"))
	t.Setenv("IPTV_PIPELINE_UPLOADS_ROOT", filepath.Join(dir, "uploads"))
	t.Setenv("IPTV_LOG_LEVEL", "error")
	return dir
}

func TestSampleCommandWritesWorkbook(t *testing.T) {
	dir := sqliteEnv(t)

	out := run(t, "--config", dir, "sample")
	assert.Contains(t, out, "wrote 5 accounts")

	_, err := os.Stat(filepath.Join(dir, "uploads", "sample-iptv-users.xlsx"))
	assert.NoError(t, err)
}

func TestAccountsCountOnEmptyStore(t *testing.T) {
	dir := sqliteEnv(t)
	assert.Equal(t, "0", strings.TrimSpace(run(t, "--config", dir, "accounts", "count")))
}

func TestAccountsGetRejectsBadID(t *testing.T) {
	dir := sqliteEnv(t)
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", dir, "accounts", "get", "not-a-uuid"})
	assert.ErrorContains(t, cmd.Execute(), "invalid account id")
}

func TestLogsWithoutEntries(t *testing.T) {
	dir := sqliteEnv(t)
	assert.Contains(t, run(t, "--config", dir, "logs", "file-1"), "no ingestion log entries for file-1")
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, spreadsheetTypes[".xlsx"], detectMimeType("a/B.XLSX"))
	assert.Equal(t, "application/octet-stream", detectMimeType("notes.unknownext"))
}
