package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the full route table. Dedicated routes are registered
// alongside the generic /:module/:entity set; gin resolves static
// segments first, so /api/deploy/templates/:id/apply wins over the
// wildcard CRUD path.
func NewRouter(s *Server) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/api/meta", MetaListHandler(s))
	r.GET("/api/meta/:module/:entity", MetaEntityHandler(s))

	api := r.Group("/api")
	{
		// reference catalog admin
		api.GET("/core/reference/:category", ReferenceListHandler(s))
		api.GET("/core/reference/:category/usage", ReferenceUsageHandler(s))
		api.GET("/core/reference/:category/labels/:code", ReferenceLabelHandler(s))
		api.POST("/core/reference", ReferenceCreateHandler(s))
		api.POST("/core/reference/migrate", ReferenceMigrateHandler(s))
		api.PATCH("/core/reference/:id", ReferenceUpdateHandler(s))
		api.POST("/core/reference/:id/deactivate", ReferenceActivationHandler(s, false))
		api.POST("/core/reference/:id/reactivate", ReferenceActivationHandler(s, true))
		api.DELETE("/core/reference/:id", ReferenceDeleteHandler(s))

		// template expansion
		api.GET("/deploy/templates/:id/full", TemplateFullHandler(s))
		api.POST("/deploy/templates/:id/apply", TemplateApplyHandler(s))
		api.POST("/deploy/templates/:id/sync", TemplateSyncHandler(s))
		api.POST("/deploy/templates/:id/sync-all", TemplateSyncAllHandler(s))

		// equipment documents
		api.POST("/catalog/equipment/:id/documents", DocumentUploadHandler(s))
		api.GET("/catalog/equipment/:id/documents", DocumentListHandler(s))
		api.DELETE("/catalog/equipment/:id", EquipmentDeleteHandler(s))
		api.GET("/documents/:id/url", DocumentURLHandler(s))
		api.DELETE("/documents/:id", DocumentDeleteHandler(s))

		// invitations
		api.POST("/org/invitations", InvitationCreateHandler(s))
		api.POST("/org/invitations/accept", InvitationAcceptHandler(s))
		api.POST("/org/invitations/:id/revoke", InvitationRevokeHandler(s))
		api.POST("/org/invitations/expire", InvitationExpireHandler(s))

		// integrations and reports
		api.GET("/integration/stratus/:code", StratusLookupHandler(s))
		api.GET("/report/facilities/:id/progress", FacilityProgressHandler(s))
		api.GET("/report/organizations/:id/rollup", OrganizationRollupHandler(s))

		// admin
		api.POST("/admin/seeds/reload", SeedReloadHandler(s))

		// generic CRUD over the registry; service routes above shadow the
		// matching static paths
		api.GET("/:module/:entity/count", CountHandler(s))
		api.POST("/:module/:entity/_bulk", BulkCreateHandler(s))
		api.POST("/:module/:entity/:id/restore", RestoreHandler(s))

		api.POST("/:module/:entity", CreateHandler(s))
		api.GET("/:module/:entity", ListHandler(s))
		api.GET("/:module/:entity/:id", GetOneHandler(s))
		api.PUT("/:module/:entity/:id", UpdateHandler(s))
		api.PATCH("/:module/:entity/:id", UpdatePartialHandler(s))
		api.DELETE("/:module/:entity/:id", DeleteHandler(s))
	}
	return r
}
