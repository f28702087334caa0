// Package deploy expands deployment templates into facility-scoped
// milestone and equipment rows, and pushes later template additions to
// already-provisioned facilities.
package deploy

import (
	"labops/internal/catalog"
	"labops/internal/store"
)

const (
	TemplateFQN          = "deploy.template"
	TemplateMilestoneFQN = "deploy.template_milestone"
	TemplateEquipmentFQN = "deploy.template_equipment"
	FacilityFQN          = "ops.facility"
	FacilityMilestoneFQN = "ops.facility_milestone"
	FacilityEquipmentFQN = "ops.facility_equipment"
)

// Initial statuses for rows created from a template.
const (
	MilestoneNotStarted = "not_started"
	EquipmentNotOrdered = "not_ordered"
)

type Template struct {
	ID                    string `json:"id"`
	Name                  string `json:"template_name"`
	Type                  string `json:"template_type,omitempty"`
	TargetComplexityLevel string `json:"target_complexity_level,omitempty"`

	Milestones []TemplateMilestone `json:"template_milestones"`
	Equipment  []TemplateEquipment `json:"template_equipment"`
}

// TemplateMilestone is one ordered association between a template and a
// milestone definition.
type TemplateMilestone struct {
	ID               string `json:"id"`
	Required         bool   `json:"is_required"`
	PriorityOverride int    `json:"priority_override,omitempty"`
	SortOrder        int    `json:"sort_order"`

	Milestone catalog.MilestoneTemplate `json:"milestone"`
}

type TemplateEquipment struct {
	ID        string `json:"id"`
	Quantity  int    `json:"quantity"`
	Required  bool   `json:"is_required"`
	SortOrder int    `json:"sort_order"`

	Equipment catalog.EquipmentItem `json:"equipment"`
}

// ApplyOptions controls the initial template application. De-duplication
// defaults to on; TargetComplexityLevel overrides the facility's stored
// level.
type ApplyOptions struct {
	TargetComplexityLevel string
	DeduplicateMilestones bool
	DeduplicateEquipment  bool
}

func DefaultApplyOptions() ApplyOptions {
	return ApplyOptions{DeduplicateMilestones: true, DeduplicateEquipment: true}
}

// ApplyResult reports what the apply did. The milestone and equipment
// batches are independent units of failure: there is no cross-entity
// rollback, so milestones may be committed even when the equipment insert
// errored out.
type ApplyResult struct {
	Success           bool `json:"success"`
	AddedMilestones   int  `json:"addedMilestones"`
	SkippedMilestones int  `json:"skippedMilestones"`
	AddedEquipment    int  `json:"addedEquipment"`
	SkippedEquipment  int  `json:"skippedEquipment"`
}

type SyncResult struct {
	Added int `json:"added"`
}

// FacilitySyncResult is one facility's outcome in a bulk sync; failures
// don't stop the fan-out.
type FacilitySyncResult struct {
	FacilityID string `json:"facility_id"`
	Added      int    `json:"added"`
	Error      string `json:"error,omitempty"`
}

func milestoneKey(category, title string) string { return category + "\x00" + title }

func equipmentKey(equipType, name string) string { return equipType + "\x00" + name }

func templateFromRecord(rec *store.Record) Template {
	return Template{
		ID:                    rec.ID,
		Name:                  asString(rec.Data["template_name"]),
		Type:                  asString(rec.Data["template_type"]),
		TargetComplexityLevel: asString(rec.Data["target_complexity_level"]),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	}
	return 0
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
