package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"labops/internal/deploy"
)

// GET /api/deploy/templates/:id/full — template with associations expanded.
func TemplateFullHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		tpl, err := s.syncer.LoadTemplate(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, tpl)
	}
}

// POST /api/deploy/templates/:id/apply
func TemplateApplyHandler(s *Server) gin.HandlerFunc {
	type req struct {
		FacilityID            string `json:"facility_id"`
		TargetComplexityLevel string `json:"target_complexity_level"`
		DeduplicateMilestones *bool  `json:"deduplicate_milestones"`
		DeduplicateEquipment  *bool  `json:"deduplicate_equipment"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil || body.FacilityID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON: facility_id is required"})
			return
		}
		opts := deploy.DefaultApplyOptions()
		opts.TargetComplexityLevel = body.TargetComplexityLevel
		if body.DeduplicateMilestones != nil {
			opts.DeduplicateMilestones = *body.DeduplicateMilestones
		}
		if body.DeduplicateEquipment != nil {
			opts.DeduplicateEquipment = *body.DeduplicateEquipment
		}
		res, err := s.syncer.ApplyTemplateToFacility(c.Request.Context(), body.FacilityID, c.Param("id"), opts)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// POST /api/deploy/templates/:id/sync — single-facility equipment push.
func TemplateSyncHandler(s *Server) gin.HandlerFunc {
	type req struct {
		FacilityID string `json:"facility_id"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil || body.FacilityID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON: facility_id is required"})
			return
		}
		res, err := s.syncer.SyncTemplateToFacility(c.Request.Context(), body.FacilityID, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// POST /api/deploy/templates/:id/sync-all — fan-out to every facility on
// the template; per-facility results, partial failure is not an error.
func TemplateSyncAllHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := s.syncer.SyncTemplateToFacilities(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}
