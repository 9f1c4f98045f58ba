package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/stampkit/stampkit/internal/apikey/domain"
)

func (s *Server) ListAPIKeys(c *gin.Context) {
	keys, err := s.apiKeySvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": keys})
}

// CreateAPIKey mints a new key. The plain secret appears in this response
// only; the server stores a hash.
func (s *Server) CreateAPIKey(c *gin.Context) {
	var req apikeydomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.apiKeySvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	_ = s.auditSvc.Record(c.Request.Context(), nil, "api_key.create", "api_key", &resp.KeyID, map[string]any{
		"name": strings.TrimSpace(req.Name),
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// RotateAPIKey issues a replacement secret. The old key keeps working
// through a short grace period so clients can roll over without downtime.
func (s *Server) RotateAPIKey(c *gin.Context) {
	keyID := strings.TrimSpace(c.Param("keyId"))

	resp, err := s.apiKeySvc.Rotate(c.Request.Context(), keyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	_ = s.auditSvc.Record(c.Request.Context(), nil, "api_key.rotate", "api_key", &keyID, map[string]any{
		"new_key_id": resp.KeyID,
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RevokeAPIKey(c *gin.Context) {
	keyID := strings.TrimSpace(c.Param("keyId"))

	if err := s.apiKeySvc.Revoke(c.Request.Context(), keyID); err != nil {
		AbortWithError(c, err)
		return
	}

	_ = s.auditSvc.Record(c.Request.Context(), nil, "api_key.revoke", "api_key", &keyID, nil)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
