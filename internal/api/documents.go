package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const downloadURLTTL = 15 * time.Minute

// POST /api/catalog/equipment/:id/documents — multipart upload under an
// equipment catalog item.
func DocumentUploadHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer f.Close()

		doc, err := s.catalog.UploadDocument(c.Request.Context(), c.Param("id"),
			fh.Filename, fh.Header.Get("Content-Type"), currentUser(c), f)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, doc)
	}
}

// GET /api/catalog/equipment/:id/documents
func DocumentListHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		docs, err := s.catalog.Documents(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, docs)
	}
}

// GET /api/documents/:id/url — temporary download URL.
func DocumentURLHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		url, err := s.catalog.DocumentURL(c.Request.Context(), c.Param("id"), downloadURLTTL)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": url})
	}
}

// DELETE /api/documents/:id
func DocumentDeleteHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.catalog.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// DELETE /api/catalog/equipment/:id — cascades to the item's documents.
func EquipmentDeleteHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.catalog.DeleteEquipmentItem(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
