package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"labops/internal/store"
)

// POST /api/:module/:entity
func CreateHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		fqn, ent, ok := store.Normalize(c.Param("module"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		var obj map[string]any
		if err := c.ShouldBindJSON(&obj); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		if errs := s.validate(c.Request.Context(), ent, obj, true); len(errs) > 0 {
			c.JSON(statusForErrors(errs), gin.H{"errors": errs})
			return
		}
		rec, err := s.store.Insert(c.Request.Context(), fqn, obj)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, rec.Flatten())
	}
}

// GET /api/:module/:entity
func ListHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		fqn, _, ok := store.Normalize(c.Param("module"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		lp := parseListParams(c.Request.URL.Query())

		total, err := s.store.Count(c.Request.Context(), fqn, lp.Filters...)
		if err != nil {
			writeError(c, err)
			return
		}
		recs, err := s.store.Select(c.Request.Context(), store.Query{
			Entity:  fqn,
			Filters: lp.Filters,
			Order:   lp.Order,
			Limit:   lp.Limit,
			Offset:  lp.Offset,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("X-Total-Count", fmt.Sprintf("%d", total))
		c.JSON(http.StatusOK, flatten(recs))
	}
}

// GET /api/:module/:entity/:id
func GetOneHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		fqn, _, ok := store.Normalize(c.Param("module"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		rec, err := s.store.Get(c.Request.Context(), fqn, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("ETag", fmt.Sprintf(`"%d"`, rec.Version))
		c.JSON(http.StatusOK, rec.Flatten())
	}
}

// PUT /api/:module/:entity/:id — full replace, version required.
func UpdateHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		fqn, ent, ok := store.Normalize(c.Param("module"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		var obj map[string]any
		if err := c.ShouldBindJSON(&obj); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		expVer, okVer := readExpectedVersion(c, obj)
		delete(obj, "version")
		if !okVer {
			c.JSON(http.StatusConflict, gin.H{"errors": []*store.ValidationError{
				store.Invalid(codeVersionConflict, "version", "expected version via If-Match or body"),
			}})
			return
		}
		if errs := s.validate(c.Request.Context(), ent, obj, true); len(errs) > 0 {
			c.JSON(statusForErrors(errs), gin.H{"errors": errs})
			return
		}
		rec, err := s.store.Update(c.Request.Context(), fqn, c.Param("id"), expVer, obj)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec.Flatten())
	}
}

// PATCH /api/:module/:entity/:id — partial merge, version required.
func UpdatePartialHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		fqn, ent, ok := store.Normalize(c.Param("module"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		var patch map[string]any
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		expVer, okVer := readExpectedVersion(c, patch)
		delete(patch, "version")
		if !okVer {
			c.JSON(http.StatusConflict, gin.H{"errors": []*store.ValidationError{
				store.Invalid(codeVersionConflict, "version", "expected version via If-Match or body"),
			}})
			return
		}
		if errs := s.validate(c.Request.Context(), ent, patch, false); len(errs) > 0 {
			c.JSON(statusForErrors(errs), gin.H{"errors": errs})
			return
		}
		rec, err := s.store.Patch(c.Request.Context(), fqn, c.Param("id"), expVer, patch)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec.Flatten())
	}
}

// DELETE /api/:module/:entity/:id — soft delete.
func DeleteHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		fqn, _, ok := store.Normalize(c.Param("module"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		if err := s.store.Delete(c.Request.Context(), fqn, c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /api/:module/:entity/:id/restore
func RestoreHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		fqn, _, ok := store.Normalize(c.Param("module"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		if err := s.store.Restore(c.Request.Context(), fqn, c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		rec, err := s.store.Get(c.Request.Context(), fqn, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec.Flatten())
	}
}

// GET /api/:module/:entity/count
func CountHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		fqn, _, ok := store.Normalize(c.Param("module"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		lp := parseListParams(c.Request.URL.Query())
		total, err := s.store.Count(c.Request.Context(), fqn, lp.Filters...)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"total": total})
	}
}

// POST /api/:module/:entity/_bulk — per-item results, 207 on completion.
func BulkCreateHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		fqn, ent, ok := store.Normalize(c.Param("module"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		var items []map[string]any
		if err := c.ShouldBindJSON(&items); err != nil || len(items) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON array"})
			return
		}
		results := make([]any, 0, len(items))
		for _, obj := range items {
			if errs := s.validate(c.Request.Context(), ent, obj, true); len(errs) > 0 {
				results = append(results, gin.H{"errors": errs})
				continue
			}
			rec, err := s.store.Insert(c.Request.Context(), fqn, obj)
			if err != nil {
				results = append(results, gin.H{"errors": []*store.ValidationError{
					store.Invalid(store.ErrTypeMismatch, "", err.Error()),
				}})
				continue
			}
			results = append(results, rec.Flatten())
		}
		c.JSON(http.StatusMultiStatus, results)
	}
}
