// Package catalog holds the reusable definitions a deployment template is
// assembled from: milestone templates, the equipment catalog, and the
// reference documents attached to catalog items.
package catalog

import (
	"labops/internal/store"
)

// CLIA complexity levels gating which template items apply to a facility.
const (
	ComplexityWaived   = "CLIA Waived"
	ComplexityModerate = "Moderate Complexity"
	ComplexityHigh     = "High Complexity"
)

const (
	MilestoneTemplateFQN = "catalog.milestone_template"
	EquipmentItemFQN     = "catalog.equipment_item"
	DocumentFQN          = "catalog.document"
)

type MilestoneTemplate struct {
	ID                      string   `json:"id"`
	Title                   string   `json:"title"`
	Category                string   `json:"category"`
	Phase                   string   `json:"phase,omitempty"`
	ResponsiblePartyDefault string   `json:"responsible_party_default,omitempty"`
	Priority                int      `json:"priority"` // 1-10, lower = more urgent
	ApplicableLevels        []string `json:"applicable_complexity_levels"`
	RequiredForComplexity   bool     `json:"is_required_for_complexity"`
	Dependencies            []string `json:"dependencies,omitempty"`
}

type EquipmentItem struct {
	ID                       string   `json:"id"`
	EquipmentName            string   `json:"equipment_name"`
	EquipmentType            string   `json:"equipment_type"`
	Manufacturer             string   `json:"manufacturer,omitempty"`
	ModelNumber              string   `json:"model_number,omitempty"`
	ProcurementMethodDefault string   `json:"procurement_method_default,omitempty"`
	ApplicableLevels         []string `json:"applicable_complexity_levels"`
	Notes                    string   `json:"complexity_specific_notes,omitempty"`
}

type Document struct {
	ID              string `json:"id"`
	EquipmentItemID string `json:"equipment_item_id"`
	FileName        string `json:"file_name"`
	Mime            string `json:"mime,omitempty"`
	Size            int64  `json:"size"`
	StorageKey      string `json:"storage_key"`
	Hash            string `json:"hash,omitempty"`
	UploadedBy      string `json:"uploaded_by,omitempty"`
}

// AppliesTo reports whether a definition with the given applicability set
// is in scope for a facility's complexity level. An empty set means the
// definition applies everywhere.
func AppliesTo(levels []string, level string) bool {
	if len(levels) == 0 {
		return true
	}
	for _, l := range levels {
		if l == level {
			return true
		}
	}
	return false
}

func MilestoneFromRecord(rec *store.Record) MilestoneTemplate {
	return MilestoneTemplate{
		ID:                      rec.ID,
		Title:                   asString(rec.Data["title"]),
		Category:                asString(rec.Data["category"]),
		Phase:                   asString(rec.Data["phase"]),
		ResponsiblePartyDefault: asString(rec.Data["responsible_party_default"]),
		Priority:                asInt(rec.Data["priority"]),
		ApplicableLevels:        asStrings(rec.Data["applicable_complexity_levels"]),
		RequiredForComplexity:   asBool(rec.Data["is_required_for_complexity"]),
		Dependencies:            asStrings(rec.Data["dependencies"]),
	}
}

func EquipmentFromRecord(rec *store.Record) EquipmentItem {
	return EquipmentItem{
		ID:                       rec.ID,
		EquipmentName:            asString(rec.Data["equipment_name"]),
		EquipmentType:            asString(rec.Data["equipment_type"]),
		Manufacturer:             asString(rec.Data["manufacturer"]),
		ModelNumber:              asString(rec.Data["model_number"]),
		ProcurementMethodDefault: asString(rec.Data["procurement_method_default"]),
		ApplicableLevels:         asStrings(rec.Data["applicable_complexity_levels"]),
		Notes:                    asString(rec.Data["complexity_specific_notes"]),
	}
}

func DocumentFromRecord(rec *store.Record) Document {
	return Document{
		ID:              rec.ID,
		EquipmentItemID: asString(rec.Data["equipment_item_id"]),
		FileName:        asString(rec.Data["file_name"]),
		Mime:            asString(rec.Data["mime"]),
		Size:            asInt64(rec.Data["size"]),
		StorageKey:      asString(rec.Data["storage_key"]),
		Hash:            asString(rec.Data["hash"]),
		UploadedBy:      asString(rec.Data["uploaded_by"]),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v any) int { return int(asInt64(v)) }

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int64:
		return t
	case float64: // json decoding
		return int64(t)
	}
	return 0
}

// asStrings accepts both []string (memory store) and []any (jsonb decode).
func asStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
