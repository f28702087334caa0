package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"labops/internal/store"
)

// GET /api/meta — registry listing for the admin UI.
func MetaListHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		type row struct {
			Module string `json:"module"`
			Name   string `json:"name"`
			Fields int    `json:"fields"`
		}
		rows := make([]row, 0, len(store.Registry))
		for _, e := range store.Registry {
			rows = append(rows, row{Module: e.Module, Name: e.Name, Fields: len(e.Fields)})
		}
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].Module != rows[j].Module {
				return rows[i].Module < rows[j].Module
			}
			return rows[i].Name < rows[j].Name
		})
		c.JSON(http.StatusOK, rows)
	}
}

// GET /api/meta/:module/:entity — field specs for one entity.
func MetaEntityHandler(s *Server) gin.HandlerFunc {
	type fieldOut struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		Required bool   `json:"required,omitempty"`
		Enum     string `json:"enum,omitempty"`
		Ref      string `json:"ref,omitempty"`
		Readonly bool   `json:"readonly,omitempty"`
	}
	return func(c *gin.Context) {
		_, ent, ok := store.Normalize(c.Param("module"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		fields := make([]fieldOut, 0, len(ent.Fields))
		for _, f := range ent.Fields {
			fields = append(fields, fieldOut{
				Name:     f.Name,
				Type:     string(f.Type),
				Required: f.Required,
				Enum:     f.Enum,
				Ref:      f.Ref,
				Readonly: f.ReadOnly,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"module": ent.Module,
			"name":   ent.Name,
			"table":  ent.Table,
			"fields": fields,
		})
	}
}
