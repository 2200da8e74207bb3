package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/recruitflow/recruitflow/internal/dispatch"
	"github.com/recruitflow/recruitflow/internal/dtos"
	"github.com/recruitflow/recruitflow/internal/pipeline"
	"github.com/recruitflow/recruitflow/internal/services"
)

// fetchTimeout bounds one ingestion cycle. Timed-out cycles leave partial
// results persisted; a retry skips what already landed.
const fetchTimeout = 2 * time.Minute

type ApplicationHandler struct {
	apps       *services.ApplicationService
	pipeline   *pipeline.Pipeline
	dispatcher *dispatch.Dispatcher
}

func NewApplicationHandler(apps *services.ApplicationService, p *pipeline.Pipeline, d *dispatch.Dispatcher) *ApplicationHandler {
	return &ApplicationHandler{apps: apps, pipeline: p, dispatcher: d}
}

// FetchEmails runs one ingestion cycle for {user, provider, job title}.
func (h *ApplicationHandler) FetchEmails(c *gin.Context) {
	var req dtos.FetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), fetchTimeout)
	defer cancel()

	result, err := h.pipeline.Fetch(ctx, req.UserID, req.Provider, req.JobTitle)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ApplicationHandler) ListApplications(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var jobID uint
	if raw := c.Query("job_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job_id"})
			return
		}
		jobID = uint(id)
	}
	apps, err := h.apps.List(c.Request.Context(), uid, jobID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apps)
}

func (h *ApplicationHandler) GetApplication(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	app, err := h.apps.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *ApplicationHandler) DownloadAttachment(c *gin.Context) {
	appID, ok := pathID(c, "id")
	if !ok {
		return
	}
	attID, ok := pathID(c, "attachmentId")
	if !ok {
		return
	}
	att, err := h.apps.Attachment(c.Request.Context(), appID, attID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
	c.Data(http.StatusOK, att.ContentType, att.Data)
}

func (h *ApplicationHandler) ToggleShortlist(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	shortlisted, err := h.apps.ToggleShortlist(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	msg := "Application removed from shortlist"
	if shortlisted {
		msg = "Application shortlisted"
	}
	c.JSON(http.StatusOK, gin.H{"is_shortlisted": shortlisted, "message": msg})
}

// SendShortlisted emails the digest of shortlisted, unsent applications.
func (h *ApplicationHandler) SendShortlisted(c *gin.Context) {
	var req dtos.SendShortlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	result, err := h.dispatcher.SendShortlisted(c.Request.Context(), req.UserID, req.Provider, req.JobID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Applications sent successfully",
		"sent_count": result.SentCount,
		"sent_at":    result.SentAt,
	})
}

func (h *ApplicationHandler) DeleteApplication(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.apps.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Application deleted successfully"})
}

func (h *ApplicationHandler) DeleteApplications(c *gin.Context) {
	var req dtos.DeleteManyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	deleted, err := h.apps.DeleteMany(c.Request.Context(), req.ApplicationIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Applications deleted successfully", "deleted": deleted})
}
