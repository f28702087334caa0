package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"labops/internal/reference"
)

// GET /api/core/reference/:category?include_inactive=true
func ReferenceListHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		includeInactive := c.Query("include_inactive") == "true"
		items, err := s.refs.List(c.Request.Context(), c.Param("category"), includeInactive)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

// POST /api/core/reference
func ReferenceCreateHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var it reference.Item
		if err := c.ShouldBindJSON(&it); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		created, err := s.refs.Create(c.Request.Context(), it)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

// PATCH /api/core/reference/:id
func ReferenceUpdateHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch map[string]any
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		it, err := s.refs.Update(c.Request.Context(), c.Param("id"), patch)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, it)
	}
}

// POST /api/core/reference/:id/deactivate | /reactivate
func ReferenceActivationHandler(s *Server, active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			it  reference.Item
			err error
		)
		if active {
			it, err = s.refs.Reactivate(c.Request.Context(), c.Param("id"))
		} else {
			it, err = s.refs.Deactivate(c.Request.Context(), c.Param("id"))
		}
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, it)
	}
}

// DELETE /api/core/reference/:id — blocked while in use or system-owned.
func ReferenceDeleteHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.refs.Delete(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// GET /api/core/reference/:category/usage?code=x
func ReferenceUsageHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := strings.TrimSpace(c.Query("code"))
		n, err := s.refs.UsageCount(c.Request.Context(), c.Param("category"), code)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"category": c.Param("category"), "code": code, "usage": n})
	}
}

// POST /api/core/reference/migrate {category, from, to}
func ReferenceMigrateHandler(s *Server) gin.HandlerFunc {
	type req struct {
		Category string `json:"category"`
		From     string `json:"from"`
		To       string `json:"to"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		n, err := s.refs.Migrate(c.Request.Context(), body.Category, body.From, body.To)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"migrated": n})
	}
}

// GET /api/core/reference/:category/labels/:code — display metadata with
// fallbacks; never errors.
func ReferenceLabelHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		cache := s.refs.Cache()
		category, code := c.Param("category"), c.Param("code")
		c.JSON(http.StatusOK, gin.H{
			"display_name": cache.DisplayName(c.Request.Context(), category, code),
			"color":        cache.Color(c.Request.Context(), category, code),
		})
	}
}
