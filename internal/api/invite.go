package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// POST /api/org/invitations
func InvitationCreateHandler(s *Server) gin.HandlerFunc {
	type req struct {
		OrganizationID string `json:"organization_id"`
		Email          string `json:"email"`
		Role           string `json:"role"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		inv, err := s.invites.Create(c.Request.Context(), body.OrganizationID, body.Email, body.Role, currentUser(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, inv)
	}
}

// POST /api/org/invitations/accept {token}
func InvitationAcceptHandler(s *Server) gin.HandlerFunc {
	type req struct {
		Token string `json:"token"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil || body.Token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON: token is required"})
			return
		}
		user := currentUser(c)
		if user == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-User header is required"})
			return
		}
		inv, err := s.invites.Accept(c.Request.Context(), body.Token, user)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, inv)
	}
}

// POST /api/org/invitations/:id/revoke
func InvitationRevokeHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.invites.Revoke(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /api/org/invitations/expire — sweep pending past expiry.
func InvitationExpireHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := s.invites.ExpireOld(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"expired": n})
	}
}
