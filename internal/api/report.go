package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /api/report/facilities/:id/progress
func FacilityProgressHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := s.reports.FacilityProgress(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// GET /api/report/organizations/:id/rollup
func OrganizationRollupHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := s.reports.OrganizationRollup(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

// GET /api/integration/stratus/:code
func StratusLookupHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := s.stratus.FindStratusMapping(c.Request.Context(), c.Param("code"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}
