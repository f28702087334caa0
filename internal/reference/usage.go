package reference

import (
	"fmt"

	"labops/internal/store"
)

// Dependent names one column that stores codes from a reference category.
type Dependent struct {
	Entity string // registry FQN
	Field  string
}

// UsageRegistry maps every known category to the columns that reference it.
// The mapping is deliberately exhaustive: Check fails at startup when a
// category is missing, rather than silently reporting zero usage.
type UsageRegistry map[string][]Dependent

// Categories is the full category set the dashboard renders.
var Categories = []string{
	"facility_status",
	"milestone_status",
	"milestone_category",
	"equipment_status",
	"equipment_type",
	"procurement_method",
	"complexity_level",
	"project_status",
	"organization_type",
	"member_role",
	"billing_plan_status",
}

var DefaultUsage = UsageRegistry{
	"facility_status": {{Entity: "ops.facility", Field: "status"}},
	"milestone_status": {
		{Entity: "ops.facility_milestone", Field: "status"},
	},
	"milestone_category": {
		{Entity: "ops.facility_milestone", Field: "category"},
		{Entity: "catalog.milestone_template", Field: "category"},
	},
	"equipment_status": {
		{Entity: "ops.facility_equipment", Field: "equipment_status"},
	},
	"equipment_type": {
		{Entity: "ops.facility_equipment", Field: "equipment_type"},
		{Entity: "catalog.equipment_item", Field: "equipment_type"},
	},
	"procurement_method": {
		{Entity: "ops.facility_equipment", Field: "procurement_method"},
		{Entity: "catalog.equipment_item", Field: "procurement_method_default"},
	},
	"complexity_level": {
		{Entity: "ops.facility", Field: "complexity_level"},
		{Entity: "deploy.template", Field: "target_complexity_level"},
	},
	"project_status":      {{Entity: "org.project", Field: "status"}},
	"organization_type":   {{Entity: "org.organization", Field: "organization_type"}},
	"member_role":         {{Entity: "org.membership", Field: "role"}, {Entity: "org.invitation", Field: "role"}},
	"billing_plan_status": {{Entity: "org.billing_plan", Field: "status"}},
}

// Check verifies the registry covers every known category and every
// dependent resolves against the entity registry.
func (r UsageRegistry) Check() error {
	for _, cat := range Categories {
		deps, ok := r[cat]
		if !ok {
			return fmt.Errorf("usage registry: category %q has no dependents entry", cat)
		}
		for _, d := range deps {
			e, ok := store.Registry[d.Entity]
			if !ok {
				return fmt.Errorf("usage registry: %q maps to unknown entity %q", cat, d.Entity)
			}
			if _, ok := e.Field(d.Field); !ok {
				return fmt.Errorf("usage registry: %q maps to unknown field %s.%s", cat, d.Entity, d.Field)
			}
		}
	}
	return nil
}
