package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"labops/internal/reference"
)

// POST /api/admin/seeds/reload — re-read the seed directory and insert
// any catalog entries that are missing. Existing rows, including admin
// edits, are left alone.
func SeedReloadHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.seedsDir == "" {
			c.JSON(http.StatusConflict, gin.H{"error": "no seed directory configured"})
			return
		}
		catalogs, err := reference.LoadSeedDir(s.seedsDir)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		added, err := s.refs.ApplySeeds(c.Request.Context(), catalogs)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"catalogs": len(catalogs), "added": added})
	}
}
