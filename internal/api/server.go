// Package api is the HTTP surface: a generic CRUD set over the entity
// registry plus dedicated routes for the designed subsystems.
package api

import (
	"labops/internal/catalog"
	"labops/internal/deploy"
	"labops/internal/integration"
	"labops/internal/invite"
	"labops/internal/reference"
	"labops/internal/report"
	"labops/internal/store"
)

type Server struct {
	store    store.Store
	refs     *reference.Service
	catalog  *catalog.Service
	syncer   *deploy.Syncer
	invites  *invite.Service
	stratus  *integration.Service
	reports  *report.Service
	seedsDir string
}

type Deps struct {
	Store    store.Store
	Refs     *reference.Service
	Catalog  *catalog.Service
	Syncer   *deploy.Syncer
	Invites  *invite.Service
	Stratus  *integration.Service
	Reports  *report.Service
	SeedsDir string
}

func NewServer(d Deps) *Server {
	return &Server{
		store:    d.Store,
		refs:     d.Refs,
		catalog:  d.Catalog,
		syncer:   d.Syncer,
		invites:  d.Invites,
		stratus:  d.Stratus,
		reports:  d.Reports,
		seedsDir: d.SeedsDir,
	}
}
