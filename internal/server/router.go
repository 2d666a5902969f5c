// =============================================================================
// Billing Inquiry - HTTP API
// =============================================================================
//
// ROUTES:
//   GET  /healthz                     liveness
//   GET  /api/v1/bills/search?q=      full match list
//   GET  /api/v1/bills/suggest?q=     type-ahead suggestions
//   GET  /api/v1/bills/stats          collection size and origin
//
//   Admin (X-Admin-Token):
//   POST /api/v1/admin/upload         replace the dataset (multipart "file")
//   GET  /api/v1/admin/template       blank upload template
//   GET  /api/v1/admin/export         current dataset as a workbook
//
// =============================================================================

package server

import (
	"context"
	"time"

	"github.com/ginjaninja78/billing-inquiry/internal/logger"
	"github.com/ginjaninja78/billing-inquiry/internal/service"
	"github.com/ginjaninja78/billing-inquiry/internal/types"
	"github.com/ginjaninja78/billing-inquiry/pkg/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BillingService is the part of service.Billing the API depends on.
type BillingService interface {
	Search(query string) []types.BillingRecord
	Suggest(query string) []types.BillingRecord
	Records() []types.BillingRecord
	Stats() service.Stats
	Upload(ctx context.Context, filename string, data []byte) (*service.UploadResult, error)
}

// Options configures the router.
type Options struct {
	// AppName is reported by the stats endpoint.
	AppName string

	// AdminToken guards the admin routes. Empty disables them (403).
	AdminToken string

	// MaxUploadBytes caps the upload request body. 0 disables the cap.
	MaxUploadBytes int64

	// Logger receives application messages.
	Logger logger.Logger

	// AccessLog receives one structured entry per request.
	AccessLog *zap.Logger

	// Archive keeps a copy of every accepted upload. Nil disables it.
	Archive *utils.ArchiveManager
}

// SetupRouter builds the gin engine serving the billing API.
func SetupRouter(svc BillingService, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.AccessLog == nil {
		opts.AccessLog = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(AccessLog(opts.AccessLog))

	h := &handler{svc: svc, opts: opts, logger: opts.Logger}

	r.GET("/healthz", h.Health)

	bills := r.Group("/api/v1/bills")
	bills.GET("/search", h.Search)
	bills.GET("/suggest", h.Suggest)
	bills.GET("/stats", h.Stats)

	admin := r.Group("/api/v1/admin", RequireAdminToken(opts.AdminToken))
	admin.POST("/upload", h.Upload)
	admin.GET("/template", h.Template)
	admin.GET("/export", h.Export)

	return r
}

// statsResponse is the body of the stats endpoint.
type statsResponse struct {
	App      string    `json:"app"`
	Count    int       `json:"count"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`

	ReplacedAt *time.Time `json:"replaced_at,omitempty"`
}

type searchResponse struct {
	Query   string                `json:"query"`
	Count   int                   `json:"count"`
	Results []types.BillingRecord `json:"results"`
}

type suggestResponse struct {
	Suggestions []types.BillingRecord `json:"suggestions"`
}

type uploadResponse struct {
	Message         string   `json:"message"`
	Count           int      `json:"count"`
	Format          string   `json:"format"`
	Mapping         string   `json:"mapping"`
	RowsRead        int      `json:"rows_read"`
	Dropped         int      `json:"dropped"`
	DuplicateIDs    int      `json:"duplicate_ids"`
	NegativeClamped int      `json:"negative_clamped"`
	Warnings        []string `json:"warnings"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
