// =============================================================================
// Billing Inquiry - Upload File Manager
// =============================================================================
//
// This module provides file utilities around billing uploads:
//   - Reading an upload from disk with a size cap
//   - Archiving accepted uploads (copy of the bytes, or move of the file)
//   - Writing the import summary log
//   - Archive retention
//
// ARCHIVAL STRATEGY:
//   - Every accepted upload is written to the archive directory under a
//     unique name: <timestamp>_<short uuid>_<original name>
//   - Rejected uploads are never archived
//   - With UseTimestampSubdirs, archives go to <dir>/YYYY/MM/DD/
//
// =============================================================================

package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrTooLarge is returned by ReadUpload when a file exceeds the size cap.
var ErrTooLarge = errors.New("file exceeds the upload size limit")

// archiveTimestamp is the timestamp layout used in archive names.
const archiveTimestamp = "20060102_150405"

// =============================================================================
// ARCHIVE MANAGER
// =============================================================================

// ArchiveManager stores copies of accepted uploads.
type ArchiveManager struct {
	// Dir is the archive root. An empty Dir disables archiving.
	Dir string

	// UseTimestampSubdirs creates date-based subdirectories.
	// Example: archive/2024/01/15/20240115_143022_1a2b3c4d_bills.xlsx
	UseTimestampSubdirs bool

	// now is replaced in tests.
	now func() time.Time
}

// NewArchiveManager creates an ArchiveManager rooted at dir.
func NewArchiveManager(dir string) *ArchiveManager {
	return &ArchiveManager{Dir: dir, now: time.Now}
}

// Enabled reports whether uploads are archived.
func (am *ArchiveManager) Enabled() bool {
	return am != nil && am.Dir != ""
}

// ArchiveUpload writes data to the archive under a unique name derived from
// filename.
//
// RETURNS:
//   - The path of the archived copy, or "" when archiving is disabled.
//   - An error if the copy could not be written.
func (am *ArchiveManager) ArchiveUpload(filename string, data []byte) (string, error) {
	if !am.Enabled() {
		return "", nil
	}

	archivePath := am.archivePath(filename)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	// O_EXCL: two uploads in the same second still get distinct uuids, but an
	// existing file is never overwritten.
	file, err := os.OpenFile(archivePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create archive file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to write archive file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to sync archive file: %w", err)
	}
	return archivePath, file.Close()
}

// ArchiveFile moves a source file into the archive.
//
// PARAMETERS:
//   - filePath: The path to the file to archive.
//
// RETURNS:
//   - The path to the archived file, or filePath when archiving is disabled.
//   - An error if archival fails. The source is left in place on error.
func (am *ArchiveManager) ArchiveFile(filePath string) (string, error) {
	if !am.Enabled() {
		return filePath, nil
	}

	archivePath := am.archivePath(filepath.Base(filePath))
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Cross-device: copy then delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// CleanOlderThan removes archived uploads older than maxAge. A zero maxAge
// keeps everything.
func (am *ArchiveManager) CleanOlderThan(maxAge time.Duration) (int, error) {
	if !am.Enabled() || maxAge <= 0 {
		return 0, nil
	}
	return CleanOldArchives(am.Dir, am.clock().Add(-maxAge))
}

// archivePath constructs the archive path for an upload name.
func (am *ArchiveManager) archivePath(filename string) string {
	now := am.clock()
	name := ArchiveFileName(filename, now)

	if am.UseTimestampSubdirs {
		return filepath.Join(am.Dir, now.Format("2006"), now.Format("01"), now.Format("02"), name)
	}
	return filepath.Join(am.Dir, name)
}

func (am *ArchiveManager) clock() time.Time {
	if am.now == nil {
		return time.Now()
	}
	return am.now()
}

// =============================================================================
// FILE NAMING
// =============================================================================

// ArchiveFileName builds a unique archive name for an upload.
//
// EXAMPLE:
//
//	filename: "C:\\Users\\admin\\November Bills.xlsx"
//	output:   "20240115_143022_1a2b3c4d_November_Bills.xlsx"
func ArchiveFileName(filename string, now time.Time) string {
	id := strings.SplitN(uuid.New().String(), "-", 2)[0]
	return fmt.Sprintf("%s_%s_%s", now.Format(archiveTimestamp), id, SanitizeFileName(filename))
}

// SanitizeFileName reduces an uploaded name to a safe base name. Directory
// parts (either separator) are dropped and anything outside [A-Za-z0-9._-]
// becomes an underscore.
func SanitizeFileName(filename string) string {
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}

	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, filename)

	sanitized = strings.TrimLeft(sanitized, ".")
	if sanitized == "" {
		return "upload"
	}
	return sanitized
}

// =============================================================================
// UPLOAD READING
// =============================================================================

// ReadUpload reads a file from disk for ingestion.
//
// PARAMETERS:
//   - path: The file to read.
//   - maxBytes: The size cap. 0 disables it.
//
// RETURNS:
//   - The file contents.
//   - ErrTooLarge (wrapped) when the file exceeds maxBytes.
func ReadUpload(path string, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrTooLarge, path, info.Size(), maxBytes)
	}

	var reader io.Reader = file
	if maxBytes > 0 {
		// The file may grow between Stat and Read.
		reader = io.LimitReader(file, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, path)
	}
	return data, nil
}

// =============================================================================
// IMPORT SUMMARY
// =============================================================================

// ImportSummary contains summary information about one import run.
type ImportSummary struct {
	StartTime       time.Time
	EndTime         time.Time
	InputFile       string
	ArchivePath     string
	Format          string
	Mapping         string
	RowsRead        int
	SkippedEmpty    int
	Dropped         int
	DuplicateIDs    int
	NegativeClamped int
	Records         int
	Warnings        int
	Store           string
	Failed          bool
	ErrorMessage    string
}

// WriteSummaryLog writes an import summary to a text file in outputDir.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ImportSummary, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create summary directory: %w", err)
	}

	summaryPath := filepath.Join(outputDir,
		fmt.Sprintf("import_summary_%s.txt", summary.StartTime.Format(archiveTimestamp)))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	status := "SUCCESS"
	if summary.Failed {
		status = "FAILED"
	}

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "Billing Inquiry - Import Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Status:         %s\n"+
		"  Input File:     %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n",
		status,
		summary.InputFile,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String())

	if summary.Failed {
		fmt.Fprintf(writer, "Error:\n  %s\n\n", summary.ErrorMessage)
	} else {
		fmt.Fprintf(writer, "Statistics:\n"+
			"  Format:             %s\n"+
			"  Column Mapping:     %s\n"+
			"  Rows Read:          %d\n"+
			"  Blank Rows:         %d\n"+
			"  Dropped Rows:       %d\n"+
			"  Re-keyed IDs:       %d\n"+
			"  Clamped Amounts:    %d\n"+
			"  Records Stored:     %d\n"+
			"  Warnings:           %d\n"+
			"  Store:              %s\n",
			summary.Format,
			summary.Mapping,
			summary.RowsRead,
			summary.SkippedEmpty,
			summary.Dropped,
			summary.DuplicateIDs,
			summary.NegativeClamped,
			summary.Records,
			summary.Warnings,
			summary.Store)
		if summary.ArchivePath != "" {
			fmt.Fprintf(writer, "  Archived To:        %s\n", summary.ArchivePath)
		}
		writer.WriteString("\n")
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// CleanOldArchives removes files under archiveDir last modified before cutoff.
//
// RETURNS:
//   - The number of files removed.
//   - An error if cleaning fails. A missing archiveDir is not an error.
func CleanOldArchives(archiveDir string, cutoff time.Time) (int, error) {
	removed := 0

	err := filepath.WalkDir(archiveDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == archiveDir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to clean archives: %w", err)
	}

	return removed, nil
}
