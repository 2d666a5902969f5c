package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ginjaninja78/billing-inquiry/internal/ingest"
	"github.com/ginjaninja78/billing-inquiry/internal/logger"
	"github.com/ginjaninja78/billing-inquiry/internal/service"
	"github.com/ginjaninja78/billing-inquiry/internal/validation"
	"github.com/ginjaninja78/billing-inquiry/internal/workbook"
	"github.com/gin-gonic/gin"
)

// xlsxContentType is the media type of generated workbooks.
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// multipartOverhead is the allowance for multipart framing on top of the
// file size cap.
const multipartOverhead = 64 << 10

type handler struct {
	svc    BillingService
	opts   Options
	logger logger.Logger
}

// Health reports liveness.
func (h *handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Search returns every record matching q.
func (h *handler) Search(c *gin.Context) {
	q := c.Query("q")
	results := h.svc.Search(q)
	c.JSON(http.StatusOK, searchResponse{Query: q, Count: len(results), Results: results})
}

// Suggest returns type-ahead suggestions for q.
func (h *handler) Suggest(c *gin.Context) {
	c.JSON(http.StatusOK, suggestResponse{Suggestions: h.svc.Suggest(c.Query("q"))})
}

// Stats describes the collection currently served.
func (h *handler) Stats(c *gin.Context) {
	s := h.svc.Stats()
	resp := statsResponse{
		App:      h.opts.AppName,
		Count:    s.Count,
		Source:   string(s.Source),
		LoadedAt: s.LoadedAt,
	}
	if !s.ReplacedAt.IsZero() {
		resp.ReplacedAt = &s.ReplacedAt
	}
	c.JSON(http.StatusOK, resp)
}

// Upload replaces the dataset with the uploaded file.
func (h *handler) Upload(c *gin.Context) {
	if h.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes+multipartOverhead)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abort(c, http.StatusRequestEntityTooLarge, validation.ErrFileTooLarge.Error())
			return
		}
		abort(c, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	if h.opts.MaxUploadBytes > 0 && header.Size > h.opts.MaxUploadBytes {
		abort(c, http.StatusRequestEntityTooLarge, validation.ErrFileTooLarge.Error())
		return
	}

	file, err := header.Open()
	if err != nil {
		abort(c, http.StatusBadRequest, "could not read the uploaded file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		abort(c, http.StatusBadRequest, "could not read the uploaded file")
		return
	}

	result, err := h.svc.Upload(c.Request.Context(), header.Filename, data)
	if err != nil {
		_ = c.Error(err)
		status := uploadErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Upload of %s failed: %v", header.Filename, err)
			abort(c, status, "the billing data could not be saved; the previous data is still served")
			return
		}
		h.logger.Warn("Upload of %s rejected: %v", header.Filename, err)
		abort(c, status, err.Error())
		return
	}

	h.archive(header.Filename, data)

	warnings := make([]string, 0, len(result.Findings))
	for _, f := range result.Findings {
		warnings = append(warnings, f.Error())
	}

	c.JSON(http.StatusOK, uploadResponse{
		Message:         fmt.Sprintf("Successfully loaded %d records.", result.Records),
		Count:           result.Records,
		Format:          result.Format.String(),
		Mapping:         string(result.Mapping),
		RowsRead:        result.Stats.RowsRead,
		Dropped:         result.Stats.Dropped,
		DuplicateIDs:    result.Stats.DuplicateIDs,
		NegativeClamped: result.Stats.NegativeClamped,
		Warnings:        warnings,
	})
}

// Template serves the blank upload template.
func (h *handler) Template(c *gin.Context) {
	data, err := workbook.Template()
	if err != nil {
		h.logger.Error("Building template failed: %v", err)
		abort(c, http.StatusInternalServerError, "could not build the template")
		return
	}
	attachment(c, workbook.TemplateFilename, data)
}

// Export serves the current dataset as a workbook.
func (h *handler) Export(c *gin.Context) {
	data, err := workbook.Export(h.svc.Records())
	if err != nil {
		h.logger.Error("Building export failed: %v", err)
		abort(c, http.StatusInternalServerError, "could not build the export")
		return
	}
	attachment(c, workbook.ExportFilename, data)
}

// archive stores a copy of an accepted upload. A failed copy is logged; the
// dataset has already been replaced.
func (h *handler) archive(filename string, data []byte) {
	if !h.opts.Archive.Enabled() {
		return
	}
	path, err := h.opts.Archive.ArchiveUpload(filename, data)
	if err != nil {
		h.logger.Warn("Archiving upload %s failed: %v", filename, err)
		return
	}
	h.logger.Info("Archived upload %s to %s", filename, path)
}

// uploadErrorStatus maps an upload failure to its HTTP status.
//
//	| error                           | status |
//	|---------------------------------|--------|
//	| validation.ErrFileTooLarge      | 413    |
//	| ingest.ErrUnsupportedFileType   | 415    |
//	| *ingest.ParseError              | 422    |
//	| service.ErrStoreUnavailable     | 502    |
//	| anything else                   | 500    |
func uploadErrorStatus(err error) int {
	switch {
	case errors.Is(err, validation.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ingest.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType
	case ingest.IsParseError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func attachment(c *gin.Context, filename string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", strings.ReplaceAll(filename, `"`, "")))
	c.Data(http.StatusOK, xlsxContentType, data)
}
