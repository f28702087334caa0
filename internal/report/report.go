// Package report computes the dashboard's aggregate numbers: per-facility
// deployment progress and per-organization rollups. Counts and percentages
// only; presentation stays client-side.
package report

import (
	"context"
	"math"

	"labops/internal/store"
)

const (
	facilityFQN          = "ops.facility"
	facilityMilestoneFQN = "ops.facility_milestone"
	facilityEquipmentFQN = "ops.facility_equipment"
	projectFQN           = "org.project"
)

const milestoneDone = "completed"

// FacilityProgress is one facility's deployment state at a glance.
type FacilityProgress struct {
	FacilityID        string         `json:"facility_id"`
	MilestoneTotal    int            `json:"milestone_total"`
	MilestonesByState map[string]int `json:"milestones_by_status"`
	PercentComplete   float64        `json:"percent_complete"`
	EquipmentTotal    int            `json:"equipment_total"`
	EquipmentByState  map[string]int `json:"equipment_by_status"`
}

// OrganizationRollup aggregates across an organization's facilities.
type OrganizationRollup struct {
	OrganizationID     string         `json:"organization_id"`
	FacilityTotal      int            `json:"facility_total"`
	FacilitiesByStatus map[string]int `json:"facilities_by_status"`
	ProjectTotal       int            `json:"project_total"`
}

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// FacilityProgress computes milestone and equipment counts for one
// facility. Percent complete is completed/total rounded to one decimal;
// zero milestones reads as 0%, not NaN.
func (s *Service) FacilityProgress(ctx context.Context, facilityID string) (FacilityProgress, error) {
	if _, err := s.store.Get(ctx, facilityFQN, facilityID); err != nil {
		return FacilityProgress{}, err
	}
	out := FacilityProgress{
		FacilityID:        facilityID,
		MilestonesByState: map[string]int{},
		EquipmentByState:  map[string]int{},
	}

	ms, err := s.store.Select(ctx, store.Query{
		Entity:  facilityMilestoneFQN,
		Filters: []store.Filter{store.Eq("facility_id", facilityID)},
	})
	if err != nil {
		return FacilityProgress{}, err
	}
	for _, rec := range ms {
		out.MilestonesByState[asString(rec.Data["status"])]++
	}
	out.MilestoneTotal = len(ms)
	if out.MilestoneTotal > 0 {
		pct := float64(out.MilestonesByState[milestoneDone]) / float64(out.MilestoneTotal) * 100
		out.PercentComplete = math.Round(pct*10) / 10
	}

	eq, err := s.store.Select(ctx, store.Query{
		Entity:  facilityEquipmentFQN,
		Filters: []store.Filter{store.Eq("facility_id", facilityID)},
	})
	if err != nil {
		return FacilityProgress{}, err
	}
	for _, rec := range eq {
		out.EquipmentByState[asString(rec.Data["equipment_status"])]++
	}
	out.EquipmentTotal = len(eq)
	return out, nil
}

// OrganizationRollup counts an organization's facilities by status plus
// its projects.
func (s *Service) OrganizationRollup(ctx context.Context, organizationID string) (OrganizationRollup, error) {
	if _, err := s.store.Get(ctx, "org.organization", organizationID); err != nil {
		return OrganizationRollup{}, err
	}
	out := OrganizationRollup{
		OrganizationID:     organizationID,
		FacilitiesByStatus: map[string]int{},
	}

	facs, err := s.store.Select(ctx, store.Query{
		Entity:  facilityFQN,
		Filters: []store.Filter{store.Eq("organization_id", organizationID)},
	})
	if err != nil {
		return OrganizationRollup{}, err
	}
	for _, rec := range facs {
		out.FacilitiesByStatus[asString(rec.Data["status"])]++
	}
	out.FacilityTotal = len(facs)

	n, err := s.store.Count(ctx, projectFQN, store.Eq("organization_id", organizationID))
	if err != nil {
		return OrganizationRollup{}, err
	}
	out.ProjectTotal = n
	return out, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
