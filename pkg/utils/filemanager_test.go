package utils

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 1, 15, 14, 30, 22, 0, time.UTC)

func TestArchiveFileName(t *testing.T) {
	name := ArchiveFileName(`C:\Users\admin\November Bills.xlsx`, fixedNow)
	assert.Regexp(t, regexp.MustCompile(`^20240115_143022_[0-9a-f]{8}_November_Bills\.xlsx$`), name)

	assert.NotEqual(t, name, ArchiveFileName(`C:\Users\admin\November Bills.xlsx`, fixedNow))
}

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"bills.xlsx":           "bills.xlsx",
		"../../etc/passwd":     "passwd",
		"..":                   "upload",
		"":                     "upload",
		"Singil ng Tubig.csv":  "Singil_ng_Tubig.csv",
		"dir\\sub\\report.xls": "report.xls",
		".hidden.csv":          "hidden.csv",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFileName(in), in)
	}
}

func TestArchiveUpload(t *testing.T) {
	dir := t.TempDir()
	am := NewArchiveManager(dir)
	am.now = func() time.Time { return fixedNow }

	path, err := am.ArchiveUpload("bills.xlsx", []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestArchiveUpload_TimestampSubdirs(t *testing.T) {
	dir := t.TempDir()
	am := NewArchiveManager(dir)
	am.UseTimestampSubdirs = true
	am.now = func() time.Time { return fixedNow }

	path, err := am.ArchiveUpload("bills.csv", []byte("a,b"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2024", "01", "15"), filepath.Dir(path))
}

func TestArchiveUpload_Disabled(t *testing.T) {
	am := NewArchiveManager("")

	path, err := am.ArchiveUpload("bills.csv", []byte("a,b"))
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.False(t, am.Enabled())
}

func TestArchiveFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "bills.csv")
	require.NoError(t, os.WriteFile(src, []byte("a,b"), 0644))

	am := NewArchiveManager(t.TempDir())
	path, err := am.ArchiveFile(src)
	require.NoError(t, err)

	assert.False(t, FileExists(src))
	assert.True(t, FileExists(path))
}

func TestReadUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bills.csv")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0644))

	data, err := ReadUpload(path, 0)
	require.NoError(t, err)
	assert.Len(t, data, 10)

	data, err = ReadUpload(path, 10)
	require.NoError(t, err)
	assert.Len(t, data, 10)

	_, err = ReadUpload(path, 9)
	assert.True(t, errors.Is(err, ErrTooLarge))

	_, err = ReadUpload(filepath.Join(t.TempDir(), "missing.csv"), 0)
	assert.Error(t, err)
}

func TestCleanOlderThan(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.xlsx")
	fresh := filepath.Join(dir, "fresh.xlsx")
	require.NoError(t, os.WriteFile(old, nil, 0644))
	require.NoError(t, os.WriteFile(fresh, nil, 0644))
	require.NoError(t, os.Chtimes(old, fixedNow.AddDate(0, 0, -40), fixedNow.AddDate(0, 0, -40)))
	require.NoError(t, os.Chtimes(fresh, fixedNow.AddDate(0, 0, -1), fixedNow.AddDate(0, 0, -1)))

	am := NewArchiveManager(dir)
	am.now = func() time.Time { return fixedNow }

	removed, err := am.CleanOlderThan(30 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, FileExists(old))
	assert.True(t, FileExists(fresh))

	removed, err = am.CleanOlderThan(0)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestCleanOldArchives_MissingDir(t *testing.T) {
	removed, err := CleanOldArchives(filepath.Join(t.TempDir(), "nope"), time.Now())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestWriteSummaryLog(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteSummaryLog(ImportSummary{
		StartTime: fixedNow,
		EndTime:   fixedNow.Add(2 * time.Second),
		InputFile: "bills.xlsx",
		Format:    "xlsx",
		Mapping:   "keyword",
		RowsRead:  5,
		Records:   4,
		Store:     "sqlite",
	}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "import_summary_20240115_143022.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Status:         SUCCESS")
	assert.Contains(t, string(data), "Records Stored:     4")

	path, err = WriteSummaryLog(ImportSummary{
		StartTime:    fixedNow.Add(time.Minute),
		EndTime:      fixedNow.Add(time.Minute),
		InputFile:    "bills.pdf",
		Failed:       true,
		ErrorMessage: "unsupported file type",
	}, dir)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "FAILED")
	assert.Contains(t, string(data), "unsupported file type")
}
