package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dlow/portfolio-dashboard/internal/middleware"
	"github.com/dlow/portfolio-dashboard/internal/models"
	"github.com/dlow/portfolio-dashboard/internal/services"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// PortfolioHandler serves the dashboard query surface backed by the session
// manager. Queries are non-blocking reads: while the pipeline runs they
// answer 202 with a loading flag rather than waiting for partial data.
type PortfolioHandler struct {
	sessions *services.SessionManager
}

// NewPortfolioHandler creates a new PortfolioHandler
func NewPortfolioHandler(sessions *services.SessionManager) *PortfolioHandler {
	return &PortfolioHandler{
		sessions: sessions,
	}
}

// Upload handles POST /api/upload. It accepts one or more CSV files under
// the multipart field "files", parses them, and starts (or replaces) the
// user's analysis session.
func (h *PortfolioHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: "expected multipart form upload",
		})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: "no files uploaded (use multipart field 'files')",
		})
		return
	}

	var rows []models.RawTradeRow
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "bad_request",
				Message: "failed to open uploaded file " + fh.Filename,
			})
			return
		}
		fileRows, err := ParseTradesCSV(f)
		f.Close()
		if err != nil {
			// A structurally broken file is skipped; bad rows inside a
			// good file are handled row-by-row in the normalizer.
			log.Warnf("skipping unparseable upload %s: %v", fh.Filename, err)
			continue
		}
		rows = append(rows, fileRows...)
	}

	userID := middleware.GetUserID(c)
	h.sessions.StartAnalysis(userID, rows)

	c.JSON(http.StatusAccepted, models.UploadResponse{
		Message:  "analysis started",
		Files:    len(files),
		RowsRead: len(rows),
	})
}

// LoadingStatus handles GET /api/loading-status
func (h *PortfolioHandler) LoadingStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.Status(middleware.GetUserID(c)))
}

// Summary handles GET /api/summary
func (h *PortfolioHandler) Summary(c *gin.Context) {
	userID := middleware.GetUserID(c)
	summary, err := h.sessions.Summary(userID)
	if err != nil {
		h.queryError(c, userID, err)
		return
	}
	summary.UnavailableSymbols, _ = h.sessions.UnavailableSymbols(userID)
	c.JSON(http.StatusOK, summary)
}

// Holdings handles GET /api/holdings
func (h *PortfolioHandler) Holdings(c *gin.Context) {
	userID := middleware.GetUserID(c)
	holdings, err := h.sessions.Holdings(userID)
	if err != nil {
		h.queryError(c, userID, err)
		return
	}
	c.JSON(http.StatusOK, holdings)
}

// HoldingDetail handles GET /api/holding-detail/:symbol
func (h *PortfolioHandler) HoldingDetail(c *gin.Context) {
	userID := middleware.GetUserID(c)
	symbol := strings.ToUpper(c.Param("symbol"))

	detail, err := h.sessions.HoldingDetail(userID, symbol)
	if err != nil {
		if errors.Is(err, services.ErrHoldingNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error:   "not_found",
				Message: "no holding for symbol " + symbol,
			})
			return
		}
		h.queryError(c, userID, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// PortfolioValue handles GET /api/portfolio-value/:currency
func (h *PortfolioHandler) PortfolioValue(c *gin.Context) {
	currency := strings.ToUpper(c.Param("currency"))
	if currency != "USD" && currency != "SGD" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: "currency must be USD or SGD",
		})
		return
	}

	userID := middleware.GetUserID(c)
	series, err := h.sessions.ValueSeries(userID, currency)
	if err != nil {
		h.queryError(c, userID, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

// SplitsAnalysis handles GET /api/splits-analysis
func (h *PortfolioHandler) SplitsAnalysis(c *gin.Context) {
	userID := middleware.GetUserID(c)
	report, err := h.sessions.SplitReport(userID)
	if err != nil {
		h.queryError(c, userID, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// RefreshPrices handles POST /api/refresh-prices
func (h *PortfolioHandler) RefreshPrices(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if err := h.sessions.RefreshPrices(userID); err != nil {
		h.queryError(c, userID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "price refresh started"})
}

// ClearSession handles DELETE /api/session
func (h *PortfolioHandler) ClearSession(c *gin.Context) {
	h.sessions.Clear(middleware.GetUserID(c))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// queryError maps session-state errors onto the API contract: 202 while
// loading (partial data is never served), 500 with the recorded reason after
// a failed pipeline.
func (h *PortfolioHandler) queryError(c *gin.Context, userID string, err error) {
	switch {
	case errors.Is(err, services.ErrNotReady):
		c.JSON(http.StatusAccepted, gin.H{"error": "Data still loading", "loading": true})
	case errors.Is(err, services.ErrSessionFailed):
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "analysis_failed",
			Message: h.sessions.FailureReason(userID),
		})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
	}
}
