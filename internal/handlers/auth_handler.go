package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/recruitflow/recruitflow/internal/auth"
	"github.com/recruitflow/recruitflow/internal/credentials"
)

type AuthHandler struct {
	oauth *auth.Manager
	creds *credentials.Store
}

func NewAuthHandler(oauth *auth.Manager, creds *credentials.Store) *AuthHandler {
	return &AuthHandler{oauth: oauth, creds: creds}
}

// ConnectURL returns the provider consent URL for the calling user.
func (h *AuthHandler) ConnectURL(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	url, err := h.oauth.AuthURL(c.Param("provider"), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Callback finishes the connect flow; provider and user come back bound to
// the state token.
func (h *AuthHandler) Callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing state or code"})
		return
	}
	cred, err := h.oauth.HandleCallback(c.Request.Context(), state, code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "email": cred.Email, "provider": cred.Provider})
}

// ListAccounts returns the user's connected mailboxes, tokens redacted by
// the model's json tags.
func (h *AuthHandler) ListAccounts(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	accounts, err := h.creds.List(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}
