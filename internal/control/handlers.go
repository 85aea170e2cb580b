// Package control exposes the poller, the toast stack and the page model over
// a small HTTP API so operators and front-ends can drive them.
package control

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/quotesync/quotesync/internal/logging"
	"github.com/quotesync/quotesync/internal/page"
	"github.com/quotesync/quotesync/internal/poller"
	"github.com/quotesync/quotesync/internal/state"
	"github.com/quotesync/quotesync/internal/toast"
)

const defaultHistoryLimit = 50

// Poller is the part of *poller.Poller the API drives.
type Poller interface {
	Status() poller.Status
	Pause()
	Resume()
	CheckNow(ctx context.Context) bool
}

// Deps are the components served by the API. Journal may be nil when history
// is disabled.
type Deps struct {
	Poller       Poller
	Toasts       *toast.Presenter
	Page         *page.Document
	Journal      *state.Journal
	CheckLimiter *rate.Limiter
	Metrics      bool
}

type Handler struct {
	deps Deps
}

func NewHandler(deps Deps) *Handler {
	if deps.CheckLimiter == nil {
		deps.CheckLimiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Handler{deps: deps}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Poller.Status())
}

func (h *Handler) Pause(c *gin.Context) {
	h.deps.Poller.Pause()
	c.JSON(http.StatusOK, h.deps.Poller.Status())
}

func (h *Handler) Resume(c *gin.Context) {
	h.deps.Poller.Resume()
	c.JSON(http.StatusOK, h.deps.Poller.Status())
}

// Check runs a poll cycle right away. It answers 429 when manual checks come
// too fast and 409 when the poller is paused or already checking.
func (h *Handler) Check(c *gin.Context) {
	if !h.deps.CheckLimiter.Allow() {
		logging.Component("control").Warn().Str("remote", c.ClientIP()).Msg("manual check rate limited")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many manual checks"})
		return
	}
	if !h.deps.Poller.CheckNow(c.Request.Context()) {
		c.JSON(http.StatusConflict, gin.H{"error": "check skipped", "status": h.deps.Poller.Status()})
		return
	}
	c.JSON(http.StatusOK, h.deps.Poller.Status())
}

func (h *Handler) ListToasts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"toasts": h.deps.Toasts.List()})
}

func (h *Handler) DismissToast(c *gin.Context) {
	if !h.deps.Toasts.Dismiss(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "toast not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetPage(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Page.Snapshot())
}

type setPathRequest struct {
	Path string `json:"path" binding:"required"`
}

// SetPage records the page the operator navigated to.
func (h *Handler) SetPage(c *gin.Context) {
	var req setPathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.deps.Page.SetPath(req.Path)
	c.JSON(http.StatusOK, h.deps.Page.Snapshot())
}

type putRowRequest struct {
	Status string `json:"status"`
}

func (h *Handler) PutRow(c *gin.Context) {
	var req putRowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	key := c.Param("key")
	h.deps.Page.PutRow(key, req.Status)
	row, _ := h.deps.Page.Row(key)
	c.JSON(http.StatusOK, row)
}

func (h *Handler) DeleteRow(c *gin.Context) {
	if !h.deps.Page.RemoveRow(c.Param("key")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "row not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AcceptPrompt(c *gin.Context) {
	if !h.deps.Page.AcceptPrompt() {
		c.JSON(http.StatusNotFound, gin.H{"error": "no reload prompt pending"})
		return
	}
	c.JSON(http.StatusOK, h.deps.Page.Snapshot())
}

func (h *Handler) DismissPrompt(c *gin.Context) {
	if !h.deps.Page.DismissPrompt() {
		c.JSON(http.StatusNotFound, gin.H{"error": "no reload prompt pending"})
		return
	}
	c.Status(http.StatusNoContent)
}

// History lists the most recently synchronized responses, newest first.
// ?quote=<id> narrows the list to one quote.
func (h *Handler) History(c *gin.Context) {
	if h.deps.Journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
		return
	}
	var (
		recs []state.Record
		err  error
	)
	if q := c.Query("quote"); q != "" {
		recs, err = h.deps.Journal.ForQuote(q)
	} else {
		limit := defaultHistoryLimit
		if v := c.Query("limit"); v != "" {
			n, convErr := strconv.Atoi(v)
			if convErr != nil || n < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}
		recs, err = h.deps.Journal.Recent(limit)
	}
	if err != nil {
		logging.Component("control").Error().Err(err).Msg("failed reading history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed reading history"})
		return
	}
	if recs == nil {
		recs = []state.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"history": recs})
}
