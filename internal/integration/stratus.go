// Package integration holds lookups against external-system mapping
// tables. Mapping rows themselves are ordinary registry entities managed
// through the generic CRUD surface.
package integration

import (
	"context"
	"time"

	"labops/internal/store"
)

const StratusMappingFQN = "integration.stratus_mapping"

// StratusMapping ties one of our facilities to a Stratus site code.
type StratusMapping struct {
	ID                  string    `json:"id"`
	FacilityID          string    `json:"facility_id"`
	StratusFacilityCode string    `json:"stratus_facility_code"`
	StratusSiteName     string    `json:"stratus_site_name,omitempty"`
	LastSyncedAt        time.Time `json:"last_synced_at,omitempty"`
}

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// FindStratusMapping resolves a Stratus facility code to the local
// mapping row. store.ErrNotFound when no row carries the code.
func (s *Service) FindStratusMapping(ctx context.Context, code string) (StratusMapping, error) {
	if code == "" {
		return StratusMapping{}, store.Invalid(store.ErrRequired, "stratus_facility_code", "code is required")
	}
	recs, err := s.store.Select(ctx, store.Query{
		Entity:  StratusMappingFQN,
		Filters: []store.Filter{store.Eq("stratus_facility_code", code)},
		Limit:   1,
	})
	if err != nil {
		return StratusMapping{}, err
	}
	if len(recs) == 0 {
		return StratusMapping{}, store.ErrNotFound
	}
	return mappingFromRecord(recs[0]), nil
}

// MarkSynced stamps last_synced_at after an external exchange.
func (s *Service) MarkSynced(ctx context.Context, id string, at time.Time) error {
	_, err := s.store.Patch(ctx, StratusMappingFQN, id, store.NoVersionCheck,
		map[string]any{"last_synced_at": at.UTC().Format(time.RFC3339)})
	return err
}

func mappingFromRecord(rec *store.Record) StratusMapping {
	m := StratusMapping{
		ID:                  rec.ID,
		FacilityID:          asString(rec.Data["facility_id"]),
		StratusFacilityCode: asString(rec.Data["stratus_facility_code"]),
		StratusSiteName:     asString(rec.Data["stratus_site_name"]),
	}
	if s, ok := rec.Data["last_synced_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			m.LastSyncedAt = t
		}
	}
	return m
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
