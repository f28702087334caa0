package main

import (
	"context"
	"log"
	"time"

	"labops/internal/api"
	"labops/internal/blob"
	"labops/internal/catalog"
	"labops/internal/config"
	"labops/internal/deploy"
	"labops/internal/integration"
	"labops/internal/invite"
	"labops/internal/pg"
	"labops/internal/reference"
	"labops/internal/report"
	"labops/internal/store"
)

func main() {
	cfg := config.LoadWithPath("config.json")
	ctx := context.Background()

	if err := store.ValidateRegistry(); err != nil {
		log.Fatalf("entity registry: %v", err)
	}

	var st store.Store
	if cfg.DBURL != "" {
		db, err := pg.Open(cfg.DBURL, cfg.DBMaxConns)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		if cfg.AutoMigrate {
			if err := pg.ApplyDDL(db, pg.GenerateDDL()); err != nil {
				log.Fatalf("auto-migrate: %v", err)
			}
			log.Println("auto-migrate: schema is current")
		}
		st = store.NewPostgres(db)
		log.Println("store: postgres")
	} else {
		st = store.NewMemory()
		log.Println("store: in-memory (no dbUrl configured)")
	}

	blobs, err := blob.Open(ctx, blob.Config{
		Driver:     cfg.BlobDriver,
		LocalRoot:  cfg.FilesRoot,
		S3Region:   cfg.S3Region,
		S3Bucket:   cfg.S3Bucket,
		S3Prefix:   cfg.S3Prefix,
		S3Endpoint: cfg.S3Endpoint,
	})
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	refs := reference.NewService(st)
	if cfg.SeedsDir != "" {
		catalogs, err := reference.LoadSeedDir(cfg.SeedsDir)
		if err != nil {
			log.Printf("seeds: %v (continuing without)", err)
		} else {
			added, err := refs.ApplySeeds(ctx, catalogs)
			if err != nil {
				log.Fatalf("seeds: %v", err)
			}
			log.Printf("seeds: %d catalogs, %d items added", len(catalogs), added)
		}
	}
	if err := reference.DefaultUsage.Check(); err != nil {
		log.Fatalf("reference usage registry: %v", err)
	}

	srv := api.NewServer(api.Deps{
		Store:    st,
		Refs:     refs,
		Catalog:  catalog.NewService(st, blobs),
		Syncer:   deploy.NewSyncer(st),
		Invites:  invite.NewService(st, invite.LogMailer{}, invite.WithTTL(time.Duration(cfg.InvitationTTLDays)*24*time.Hour)),
		Stratus:  integration.NewService(st),
		Reports:  report.NewService(st),
		SeedsDir: cfg.SeedsDir,
	})

	log.Printf("labops listening on :%s", cfg.Port)
	if err := api.NewRouter(srv).Run(":" + cfg.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
