package reference

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"labops/internal/store"
)

// SeedCatalog is one YAML file under the seeds directory: a category plus
// its initial items.
type SeedCatalog struct {
	Category string     `yaml:"category"`
	Items    []SeedItem `yaml:"items"`
}

type SeedItem struct {
	Code        string `yaml:"code"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description,omitempty"`
	Color       string `yaml:"color,omitempty"`
	SortOrder   int    `yaml:"sort_order,omitempty"`
	System      bool   `yaml:"system,omitempty"`
}

// LoadSeedDir reads every *.yaml/*.yml catalog in dir. The category falls
// back to the file name when the document omits it.
func LoadSeedDir(dir string) ([]SeedCatalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []SeedCatalog
	for _, e := range entries {
		if e.IsDir() || !(strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var cat SeedCatalog
		if err := yaml.Unmarshal(data, &cat); err != nil {
			return nil, fmt.Errorf("seed %s: %w", e.Name(), err)
		}
		if cat.Category == "" {
			cat.Category = strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		}
		out = append(out, cat)
	}
	return out, nil
}

// ApplySeeds inserts any seed item whose (category, code) is not present
// yet. Existing items are left alone so admin edits survive restarts.
func (s *Service) ApplySeeds(ctx context.Context, catalogs []SeedCatalog) (int, error) {
	added := 0
	for _, cat := range catalogs {
		touched := false
		for _, seed := range cat.Items {
			code := NormalizeCode(seed.Code)
			if code == "" {
				code = NormalizeCode(seed.DisplayName)
			}
			_, err := s.find(ctx, cat.Category, code)
			if err == nil {
				continue
			}
			if err != store.ErrNotFound {
				return added, err
			}
			it := Item{
				Category:    cat.Category,
				Code:        code,
				DisplayName: seed.DisplayName,
				Description: seed.Description,
				Color:       seed.Color,
				SortOrder:   seed.SortOrder,
				Active:      true,
				System:      seed.System,
			}
			if _, err := s.store.Insert(ctx, EntityFQN, it.data()); err != nil {
				return added, fmt.Errorf("seed %s/%s: %w", cat.Category, code, err)
			}
			added++
			touched = true
		}
		if touched {
			s.cache.Invalidate(cat.Category)
		}
	}
	if added > 0 {
		log.Printf("reference seeds: %d items inserted", added)
	}
	return added, nil
}
