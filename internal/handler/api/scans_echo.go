package api

import (
	"context"
	"errors"
	"time"

	"AlphaRadar/internal/domain/models"
	drepo "AlphaRadar/internal/domain/repository"
	"AlphaRadar/internal/service/metrics"
	"AlphaRadar/internal/service/ratelimit"
	"AlphaRadar/internal/usecase"
	xhttp "AlphaRadar/pkg/http"
	xlogger "AlphaRadar/pkg/logger"
	"AlphaRadar/pkg/util"

	"github.com/labstack/echo/v4"
)

// Scanner is the part of ScanScheduler the API drives.
type Scanner interface {
	PollOnce(ctx context.Context, trigger usecase.Trigger) (models.Snapshot, error)
	Snapshot() models.Snapshot
	Scanning() bool
	ScansTotal() int64
}

// HistoryView is the read side of the scan history.
type HistoryView interface {
	GetAll() []models.ScanRecord
	Len() int
	Status() models.PersistStatus
}

// StatsReporter builds windowed frequency reports.
type StatsReporter interface {
	Report(window drepo.Window, at time.Time) models.StatsReport
}

// Health is the body of GET /api/health.
type Health struct {
	Scanning    bool                 `json:"scanning"`
	HistorySize int                  `json:"history_size"`
	ScansTotal  int64                `json:"scans_total"`
	Persist     models.PersistStatus `json:"persist"`
}

// ScanHandler serves the radar query API.
type ScanHandler struct {
	scanner Scanner
	history HistoryView
	stats   StatsReporter
	limiter *ratelimit.Limiter
	feed    *FeedHub
	logger  *xlogger.Logger
}

// NewScanHandler creates the handler. limiter and feed are optional.
func NewScanHandler(
	scanner Scanner,
	history HistoryView,
	stats StatsReporter,
	limiter *ratelimit.Limiter,
	feed *FeedHub,
	logger *xlogger.Logger,
) *ScanHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ScanHandler{
		scanner: scanner,
		history: history,
		stats:   stats,
		limiter: limiter,
		feed:    feed,
		logger:  logger,
	}
}

func (h *ScanHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/history", h.History)
	g.GET("/stats", h.Stats)
	g.GET("/state", h.State)
	g.POST("/scan", h.Scan)
	g.GET("/health", h.Health)
	if h.feed != nil {
		g.GET("/feed", h.feed.Serve)
	}
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// History returns the newest-first scan log, paged by limit and offset.
func (h *ScanHandler) History(c echo.Context) error {
	defer observe("history", time.Now())

	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues("history").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	all := h.history.GetAll()
	start := req.Offset
	if start > len(all) {
		start = len(all)
	}
	end := start + req.Limit
	if end > len(all) {
		end = len(all)
	}
	return xhttp.ListResponse(c, all[start:end], int64(len(all)))
}

// Stats returns the symbol frequency report for a window.
func (h *ScanHandler) Stats(c echo.Context) error {
	defer observe("stats", time.Now())

	req := &models.StatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues("stats").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	var at time.Time
	if req.At != "" {
		t, ok := util.ParseTime(req.At)
		if !ok {
			metrics.APIErrors.WithLabelValues("stats").Inc()
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("at must be RFC3339 or a unix timestamp").WithParam("at", req.At))
		}
		at = t
	}

	report := h.stats.Report(drepo.NormalizeWindow(req.Window), at)
	return xhttp.SuccessResponse(c, report)
}

// State returns the current snapshot, optionally filtered by category.
func (h *ScanHandler) State(c echo.Context) error {
	defer observe("state", time.Now())

	req := &models.StateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues("state").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.scanner.Snapshot().ByCategory(req.Category))
}

// Scan runs a manual poll. A source failure still answers 200 with the
// error carried in the snapshot.
func (h *ScanHandler) Scan(c echo.Context) error {
	defer observe("scan", time.Now())

	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		metrics.APIErrors.WithLabelValues("scan").Inc()
		h.logger.Warn("manual scan rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many scan requests, slow down"))
	}

	// the poll outlives a client that disconnects mid-scan
	ctx := context.WithoutCancel(c.Request().Context())
	snap, err := h.scanner.PollOnce(ctx, usecase.TriggerManual)
	if errors.Is(err, usecase.ErrPollInProgress) {
		metrics.APIErrors.WithLabelValues("scan").Inc()
		return xhttp.AppErrorResponse(c, xhttp.ConflictError(usecase.ErrPollInProgress.Error()).WithError(err))
	}
	if err != nil {
		metrics.APIErrors.WithLabelValues("scan").Inc()
		h.logger.Warn("manual scan returned error", xlogger.Error(err))
	}
	return xhttp.SuccessResponse(c, snap)
}

func (h *ScanHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, Health{
		Scanning:    h.scanner.Scanning(),
		HistorySize: h.history.Len(),
		ScansTotal:  h.scanner.ScansTotal(),
		Persist:     h.history.Status(),
	})
}
