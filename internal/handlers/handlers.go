package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/recruitflow/recruitflow/internal/domain"
)

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError maps domain errors onto HTTP statuses; anything unknown is
// a 500 with the message passed through.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrCredentialNotFound),
		errors.Is(err, domain.ErrReauthRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Please reconnect your account: " + err.Error()})
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrApplicationNotFound),
		errors.Is(err, domain.ErrAttachmentNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrNoPendingApplications):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrAlreadySent):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnsupportedProvider),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrAccountInUse):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// userID reads the calling recruiter's id. Authentication itself lives in
// front of this API; the handlers only need to know who is asking.
func userID(c *gin.Context) (uint, bool) {
	raw := c.GetHeader("X-User-ID")
	if raw == "" {
		raw = c.Query("user_id")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid user id"})
		return 0, false
	}
	return uint(id), true
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}
