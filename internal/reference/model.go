// Package reference manages the admin-editable coded lookup lists (statuses,
// categories, roles) used across the dashboard, and the process-wide cache
// that fronts them.
package reference

import (
	"labops/internal/store"
)

const EntityFQN = "core.reference_item"

type Item struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	SortOrder   int    `json:"sort_order"`
	Active      bool   `json:"is_active"`
	System      bool   `json:"is_system"`
}

func itemFromRecord(rec *store.Record) Item {
	return Item{
		ID:          rec.ID,
		Category:    asString(rec.Data["category"]),
		Code:        asString(rec.Data["code"]),
		DisplayName: asString(rec.Data["display_name"]),
		Description: asString(rec.Data["description"]),
		Color:       asString(rec.Data["color"]),
		SortOrder:   asInt(rec.Data["sort_order"]),
		Active:      asBool(rec.Data["is_active"]),
		System:      asBool(rec.Data["is_system"]),
	}
}

func (it Item) data() map[string]any {
	return map[string]any{
		"category":     it.Category,
		"code":         it.Code,
		"display_name": it.DisplayName,
		"description":  it.Description,
		"color":        it.Color,
		"sort_order":   it.SortOrder,
		"is_active":    it.Active,
		"is_system":    it.System,
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

func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64: // json decoding
		return int(t)
	}
	return 0
}
