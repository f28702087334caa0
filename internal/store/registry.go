package store

import (
	"fmt"
	"strings"
)

type FieldType string

const (
	TString   FieldType = "string"
	TInt      FieldType = "int"
	TFloat    FieldType = "float"
	TBool     FieldType = "bool"
	TDatetime FieldType = "datetime"
	TJSON     FieldType = "json"
	TRef      FieldType = "ref" // id of another record
)

type FieldSpec struct {
	Name     string
	Type     FieldType
	Required bool
	Enum     string // reference category the value must belong to
	Ref      string // target entity FQN for TRef
	ReadOnly bool   // writable only by the service layer, not the API
}

type Entity struct {
	Module string
	Name   string
	Table  string
	Fields []FieldSpec
}

func (e *Entity) FQN() string { return e.Module + "." + e.Name }

func (e *Entity) Field(name string) (FieldSpec, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Registry is the fixed entity set. The data model is known at compile
// time, so it is a plain table checked once at startup rather than a
// schema loaded from files.
var Registry = map[string]*Entity{
	"core.reference_item": {
		Module: "core", Name: "reference_item", Table: "core_reference_items",
		Fields: []FieldSpec{
			{Name: "category", Type: TString, Required: true},
			{Name: "code", Type: TString, Required: true},
			{Name: "display_name", Type: TString, Required: true},
			{Name: "description", Type: TString},
			{Name: "color", Type: TString},
			{Name: "sort_order", Type: TInt},
			{Name: "is_active", Type: TBool},
			{Name: "is_system", Type: TBool, ReadOnly: true},
		},
	},
	"catalog.milestone_template": {
		Module: "catalog", Name: "milestone_template", Table: "catalog_milestone_templates",
		Fields: []FieldSpec{
			{Name: "title", Type: TString, Required: true},
			{Name: "category", Type: TString, Required: true, Enum: "milestone_category"},
			{Name: "phase", Type: TString},
			{Name: "responsible_party_default", Type: TString},
			{Name: "priority", Type: TInt},
			{Name: "applicable_complexity_levels", Type: TJSON},
			{Name: "is_required_for_complexity", Type: TBool},
			{Name: "dependencies", Type: TJSON},
		},
	},
	"catalog.equipment_item": {
		Module: "catalog", Name: "equipment_item", Table: "catalog_equipment_items",
		Fields: []FieldSpec{
			{Name: "equipment_name", Type: TString, Required: true},
			{Name: "equipment_type", Type: TString, Required: true, Enum: "equipment_type"},
			{Name: "manufacturer", Type: TString},
			{Name: "model_number", Type: TString},
			{Name: "procurement_method_default", Type: TString, Enum: "procurement_method"},
			{Name: "applicable_complexity_levels", Type: TJSON},
			{Name: "complexity_specific_notes", Type: TString},
		},
	},
	"catalog.document": {
		Module: "catalog", Name: "document", Table: "catalog_documents",
		Fields: []FieldSpec{
			{Name: "equipment_item_id", Type: TRef, Required: true, Ref: "catalog.equipment_item"},
			{Name: "file_name", Type: TString, Required: true},
			{Name: "mime", Type: TString},
			{Name: "size", Type: TInt, ReadOnly: true},
			{Name: "storage_key", Type: TString, ReadOnly: true},
			{Name: "hash", Type: TString, ReadOnly: true},
			{Name: "uploaded_by", Type: TString},
		},
	},
	"deploy.template": {
		Module: "deploy", Name: "template", Table: "deploy_templates",
		Fields: []FieldSpec{
			{Name: "template_name", Type: TString, Required: true},
			{Name: "template_type", Type: TString},
			{Name: "target_complexity_level", Type: TString, Enum: "complexity_level"},
			{Name: "description", Type: TString},
		},
	},
	"deploy.template_milestone": {
		Module: "deploy", Name: "template_milestone", Table: "deploy_template_milestones",
		Fields: []FieldSpec{
			{Name: "template_id", Type: TRef, Required: true, Ref: "deploy.template"},
			{Name: "milestone_template_id", Type: TRef, Required: true, Ref: "catalog.milestone_template"},
			{Name: "is_required", Type: TBool},
			{Name: "priority_override", Type: TInt},
			{Name: "sort_order", Type: TInt},
		},
	},
	"deploy.template_equipment": {
		Module: "deploy", Name: "template_equipment", Table: "deploy_template_equipment",
		Fields: []FieldSpec{
			{Name: "template_id", Type: TRef, Required: true, Ref: "deploy.template"},
			{Name: "equipment_item_id", Type: TRef, Required: true, Ref: "catalog.equipment_item"},
			{Name: "quantity", Type: TInt},
			{Name: "is_required", Type: TBool},
			{Name: "sort_order", Type: TInt},
		},
	},
	"ops.facility": {
		Module: "ops", Name: "facility", Table: "ops_facilities",
		Fields: []FieldSpec{
			{Name: "organization_id", Type: TRef, Ref: "org.organization"},
			{Name: "project_id", Type: TRef, Ref: "org.project"},
			{Name: "facility_name", Type: TString, Required: true},
			{Name: "status", Type: TString, Enum: "facility_status"},
			{Name: "complexity_level", Type: TString, Enum: "complexity_level"},
			{Name: "template_id", Type: TRef, Ref: "deploy.template"},
			{Name: "address", Type: TString},
			{Name: "go_live_date", Type: TDatetime},
		},
	},
	"ops.facility_milestone": {
		Module: "ops", Name: "facility_milestone", Table: "ops_facility_milestones",
		Fields: []FieldSpec{
			{Name: "facility_id", Type: TRef, Required: true, Ref: "ops.facility"},
			{Name: "title", Type: TString, Required: true},
			{Name: "category", Type: TString, Required: true, Enum: "milestone_category"},
			{Name: "phase", Type: TString},
			{Name: "status", Type: TString, Enum: "milestone_status"},
			{Name: "priority", Type: TInt},
			{Name: "responsible_party", Type: TString},
			{Name: "milestone_order", Type: TInt},
			{Name: "is_required", Type: TBool},
			{Name: "due_date", Type: TDatetime},
			{Name: "completed_at", Type: TDatetime},
			{Name: "from_template", Type: TBool},
			{Name: "template_milestone_id", Type: TString},
		},
	},
	"ops.facility_equipment": {
		Module: "ops", Name: "facility_equipment", Table: "ops_facility_equipment",
		Fields: []FieldSpec{
			{Name: "facility_id", Type: TRef, Required: true, Ref: "ops.facility"},
			{Name: "equipment_name", Type: TString, Required: true},
			{Name: "equipment_type", Type: TString, Required: true, Enum: "equipment_type"},
			{Name: "equipment_status", Type: TString, Enum: "equipment_status"},
			{Name: "quantity", Type: TInt},
			{Name: "procurement_method", Type: TString, Enum: "procurement_method"},
			{Name: "serial_number", Type: TString},
			{Name: "from_template", Type: TBool},
			// Weak provenance reference: deleting the template association
			// must not touch this row.
			{Name: "template_equipment_id", Type: TString},
		},
	},
	"org.organization": {
		Module: "org", Name: "organization", Table: "org_organizations",
		Fields: []FieldSpec{
			{Name: "name", Type: TString, Required: true},
			{Name: "organization_type", Type: TString, Enum: "organization_type"},
			{Name: "billing_plan_id", Type: TRef, Ref: "org.billing_plan"},
			{Name: "contact_email", Type: TString},
		},
	},
	"org.project": {
		Module: "org", Name: "project", Table: "org_projects",
		Fields: []FieldSpec{
			{Name: "organization_id", Type: TRef, Required: true, Ref: "org.organization"},
			{Name: "name", Type: TString, Required: true},
			{Name: "status", Type: TString, Enum: "project_status"},
			{Name: "target_date", Type: TDatetime},
		},
	},
	"org.membership": {
		Module: "org", Name: "membership", Table: "org_memberships",
		Fields: []FieldSpec{
			{Name: "organization_id", Type: TRef, Required: true, Ref: "org.organization"},
			{Name: "user_id", Type: TString, Required: true},
			{Name: "role", Type: TString, Required: true, Enum: "member_role"},
			{Name: "assigned_by", Type: TString},
		},
	},
	"org.billing_plan": {
		Module: "org", Name: "billing_plan", Table: "org_billing_plans",
		Fields: []FieldSpec{
			{Name: "plan_name", Type: TString, Required: true},
			{Name: "status", Type: TString, Enum: "billing_plan_status"},
			{Name: "monthly_price", Type: TFloat},
			{Name: "facility_limit", Type: TInt},
		},
	},
	"org.invitation": {
		Module: "org", Name: "invitation", Table: "org_invitations",
		Fields: []FieldSpec{
			{Name: "organization_id", Type: TRef, Required: true, Ref: "org.organization"},
			{Name: "email", Type: TString, Required: true},
			{Name: "role", Type: TString, Required: true, Enum: "member_role"},
			{Name: "token", Type: TString, ReadOnly: true},
			{Name: "status", Type: TString, ReadOnly: true},
			{Name: "invited_by", Type: TString},
			{Name: "expires_at", Type: TDatetime, ReadOnly: true},
			{Name: "accepted_at", Type: TDatetime, ReadOnly: true},
		},
	},
	"integration.stratus_mapping": {
		Module: "integration", Name: "stratus_mapping", Table: "integration_stratus_mappings",
		Fields: []FieldSpec{
			{Name: "facility_id", Type: TRef, Required: true, Ref: "ops.facility"},
			{Name: "stratus_facility_code", Type: TString, Required: true},
			{Name: "stratus_site_name", Type: TString},
			{Name: "last_synced_at", Type: TDatetime},
		},
	},
}

// Normalize resolves a module/entity pair from the URL into a registered
// FQN. A trailing "s" is tolerated so /api/org/projects works.
func Normalize(module, entity string) (string, *Entity, bool) {
	module = strings.ToLower(strings.TrimSpace(module))
	entity = strings.ToLower(strings.TrimSpace(entity))
	if e, ok := Registry[module+"."+entity]; ok {
		return e.FQN(), e, true
	}
	if strings.HasSuffix(entity, "s") {
		if e, ok := Registry[module+"."+strings.TrimSuffix(entity, "s")]; ok {
			return e.FQN(), e, true
		}
	}
	return "", nil, false
}

// ValidateRegistry runs startup sanity checks: unique tables, resolvable
// refs, key/module consistency.
func ValidateRegistry() error {
	tables := map[string]string{}
	for fqn, e := range Registry {
		if e.FQN() != fqn {
			return fmt.Errorf("registry key %q does not match entity %q", fqn, e.FQN())
		}
		if prev, dup := tables[e.Table]; dup {
			return fmt.Errorf("table %q claimed by both %s and %s", e.Table, prev, fqn)
		}
		tables[e.Table] = fqn
		for _, f := range e.Fields {
			if f.Type == TRef && f.Ref != "" {
				if _, ok := Registry[f.Ref]; !ok {
					return fmt.Errorf("%s.%s references unknown entity %q", fqn, f.Name, f.Ref)
				}
			}
		}
	}
	return nil
}
