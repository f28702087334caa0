package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labops/internal/catalog"
	"labops/internal/store"
)

type fixture struct {
	mem    *store.Memory
	syncer *Syncer
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	return &fixture{mem: mem, syncer: NewSyncer(mem), ctx: context.Background()}
}

func (f *fixture) facility(t *testing.T, level string) string {
	t.Helper()
	data := map[string]any{"facility_name": "Lab"}
	if level != "" {
		data["complexity_level"] = level
	}
	rec, err := f.mem.Insert(f.ctx, FacilityFQN, data)
	require.NoError(t, err)
	return rec.ID
}

func (f *fixture) template(t *testing.T, name string) string {
	t.Helper()
	rec, err := f.mem.Insert(f.ctx, TemplateFQN, map[string]any{"template_name": name})
	require.NoError(t, err)
	return rec.ID
}

func (f *fixture) milestoneDef(t *testing.T, title, category string, levels []string, priority int) string {
	t.Helper()
	rec, err := f.mem.Insert(f.ctx, catalog.MilestoneTemplateFQN, map[string]any{
		"title": title, "category": category,
		"applicable_complexity_levels": levels,
		"priority":                     priority,
	})
	require.NoError(t, err)
	return rec.ID
}

func (f *fixture) equipmentDef(t *testing.T, name, equipType string, levels []string) string {
	t.Helper()
	rec, err := f.mem.Insert(f.ctx, catalog.EquipmentItemFQN, map[string]any{
		"equipment_name": name, "equipment_type": equipType,
		"applicable_complexity_levels": levels,
	})
	require.NoError(t, err)
	return rec.ID
}

func (f *fixture) attachMilestone(t *testing.T, templateID, defID string, sortOrder, priorityOverride int) {
	t.Helper()
	_, err := f.mem.Insert(f.ctx, TemplateMilestoneFQN, map[string]any{
		"template_id": templateID, "milestone_template_id": defID,
		"sort_order": sortOrder, "priority_override": priorityOverride, "is_required": true,
	})
	require.NoError(t, err)
}

func (f *fixture) attachEquipment(t *testing.T, templateID, defID string, sortOrder, quantity int) {
	t.Helper()
	_, err := f.mem.Insert(f.ctx, TemplateEquipmentFQN, map[string]any{
		"template_id": templateID, "equipment_item_id": defID,
		"sort_order": sortOrder, "quantity": quantity,
	})
	require.NoError(t, err)
}

func (f *fixture) milestones(t *testing.T, facilityID string) []*store.Record {
	t.Helper()
	recs, err := f.mem.Select(f.ctx, store.Query{
		Entity:  FacilityMilestoneFQN,
		Filters: []store.Filter{store.Eq("facility_id", facilityID)},
		Order:   []store.Order{{Field: "milestone_order"}},
	})
	require.NoError(t, err)
	return recs
}

func (f *fixture) equipment(t *testing.T, facilityID string) []*store.Record {
	t.Helper()
	recs, err := f.mem.Select(f.ctx, store.Query{
		Entity:  FacilityEquipmentFQN,
		Filters: []store.Filter{store.Eq("facility_id", facilityID)},
	})
	require.NoError(t, err)
	return recs
}

func TestApplyExpandsTemplate(t *testing.T) {
	f := newFixture(t)
	fac := f.facility(t, catalog.ComplexityModerate)
	tpl := f.template(t, "Moderate Lab")

	m1 := f.milestoneDef(t, "CLIA Application", "regulatory", nil, 2)
	m2 := f.milestoneDef(t, "Staff Training", "staffing", nil, 5)
	f.attachMilestone(t, tpl, m1, 1, 0)
	f.attachMilestone(t, tpl, m2, 2, 1)

	e1 := f.equipmentDef(t, "Sysmex XN-1000", "hematology_analyzer", nil)
	f.attachEquipment(t, tpl, e1, 1, 2)

	res, err := f.syncer.ApplyTemplateToFacility(f.ctx, fac, tpl, DefaultApplyOptions())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.AddedMilestones)
	assert.Equal(t, 1, res.AddedEquipment)
	assert.Zero(t, res.SkippedMilestones)

	ms := f.milestones(t, fac)
	require.Len(t, ms, 2)
	assert.Equal(t, "CLIA Application", ms[0].Data["title"])
	assert.Equal(t, 1, ms[0].Data["milestone_order"])
	assert.Equal(t, 2, ms[1].Data["milestone_order"])
	assert.Equal(t, MilestoneNotStarted, ms[0].Data["status"])
	assert.Equal(t, 2, ms[0].Data["priority"])
	assert.Equal(t, 1, ms[1].Data["priority"], "association override beats the definition default")

	eq := f.equipment(t, fac)
	require.Len(t, eq, 1)
	assert.Equal(t, EquipmentNotOrdered, eq[0].Data["equipment_status"])
	assert.Equal(t, true, eq[0].Data["from_template"])
	assert.NotEmpty(t, eq[0].Data["template_equipment_id"])
	assert.Equal(t, 2, eq[0].Data["quantity"])

	// template recorded on the facility
	facRec, err := f.mem.Get(f.ctx, FacilityFQN, fac)
	require.NoError(t, err)
	assert.Equal(t, tpl, facRec.Data["template_id"])
}

func TestApplySkipsExistingMilestoneByCategoryTitle(t *testing.T) {
	f := newFixture(t)
	fac := f.facility(t, "")
	tpl := f.template(t, "Base")

	_, err := f.mem.Insert(f.ctx, FacilityMilestoneFQN, map[string]any{
		"facility_id": fac, "category": "regulatory", "title": "CLIA Application",
	})
	require.NoError(t, err)

	def := f.milestoneDef(t, "CLIA Application", "regulatory", nil, 1)
	f.attachMilestone(t, tpl, def, 1, 0)

	res, err := f.syncer.ApplyTemplateToFacility(f.ctx, fac, tpl, DefaultApplyOptions())
	require.NoError(t, err)
	assert.Zero(t, res.AddedMilestones)
	assert.Equal(t, 1, res.SkippedMilestones)
	assert.Len(t, f.milestones(t, fac), 1)
}

func TestApplyFiltersByComplexityLevel(t *testing.T) {
	f := newFixture(t)
	fac := f.facility(t, "") // unset level defaults to CLIA Waived
	tpl := f.template(t, "Base")

	high := f.milestoneDef(t, "Pathologist Review Setup", "regulatory", []string{catalog.ComplexityHigh}, 1)
	all := f.milestoneDef(t, "Facility Walkthrough", "site", nil, 3)
	f.attachMilestone(t, tpl, high, 1, 0)
	f.attachMilestone(t, tpl, all, 2, 0)

	res, err := f.syncer.ApplyTemplateToFacility(f.ctx, fac, tpl, DefaultApplyOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.AddedMilestones)
	assert.Zero(t, res.SkippedMilestones, "complexity-filtered items are not counted as skipped duplicates")

	ms := f.milestones(t, fac)
	require.Len(t, ms, 1)
	assert.Equal(t, "Facility Walkthrough", ms[0].Data["title"])
	assert.Equal(t, 1, ms[0].Data["milestone_order"], "order is numbered among survivors")
}

func TestApplyOptionsOverrideComplexityLevel(t *testing.T) {
	f := newFixture(t)
	fac := f.facility(t, catalog.ComplexityWaived)
	tpl := f.template(t, "Base")

	high := f.milestoneDef(t, "Pathologist Review Setup", "regulatory", []string{catalog.ComplexityHigh}, 1)
	f.attachMilestone(t, tpl, high, 1, 0)

	opts := DefaultApplyOptions()
	opts.TargetComplexityLevel = catalog.ComplexityHigh
	res, err := f.syncer.ApplyTemplateToFacility(f.ctx, fac, tpl, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AddedMilestones)
}

func TestApplyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	fac := f.facility(t, catalog.ComplexityModerate)
	tpl := f.template(t, "Base")

	f.attachMilestone(t, tpl, f.milestoneDef(t, "A", "regulatory", nil, 1), 1, 0)
	f.attachMilestone(t, tpl, f.milestoneDef(t, "B", "site", nil, 2), 2, 0)
	f.attachEquipment(t, tpl, f.equipmentDef(t, "Analyzer", "analyzer", nil), 1, 1)

	first, err := f.syncer.ApplyTemplateToFacility(f.ctx, fac, tpl, DefaultApplyOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, first.AddedMilestones)
	assert.Equal(t, 1, first.AddedEquipment)

	second, err := f.syncer.ApplyTemplateToFacility(f.ctx, fac, tpl, DefaultApplyOptions())
	require.NoError(t, err)
	assert.Zero(t, second.AddedMilestones)
	assert.Equal(t, 2, second.SkippedMilestones)
	assert.Zero(t, second.AddedEquipment)
	assert.Equal(t, 1, second.SkippedEquipment)

	assert.Len(t, f.milestones(t, fac), 2)
	assert.Len(t, f.equipment(t, fac), 1)
}

func TestApplyCollapsesDuplicateTemplateItems(t *testing.T) {
	f := newFixture(t)
	fac := f.facility(t, "")
	tpl := f.template(t, "Base")

	// two distinct definitions collapsing to the same (category, title)
	f.attachMilestone(t, tpl, f.milestoneDef(t, "Walkthrough", "site", nil, 1), 1, 0)
	f.attachMilestone(t, tpl, f.milestoneDef(t, "Walkthrough", "site", nil, 4), 2, 0)

	res, err := f.syncer.ApplyTemplateToFacility(f.ctx, fac, tpl, DefaultApplyOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.AddedMilestones)
	assert.Equal(t, 1, res.SkippedMilestones)
}

func TestApplyWithoutDeduplication(t *testing.T) {
	f := newFixture(t)
	fac := f.facility(t, "")
	tpl := f.template(t, "Base")

	_, err := f.mem.Insert(f.ctx, FacilityMilestoneFQN, map[string]any{
		"facility_id": fac, "category": "site", "title": "Walkthrough",
	})
	require.NoError(t, err)
	f.attachMilestone(t, tpl, f.milestoneDef(t, "Walkthrough", "site", nil, 1), 1, 0)

	opts := DefaultApplyOptions()
	opts.DeduplicateMilestones = false
	res, err := f.syncer.ApplyTemplateToFacility(f.ctx, fac, tpl, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AddedMilestones)
	assert.Len(t, f.milestones(t, fac), 2)
}

// The incremental push is equipment-only and applies no complexity filter:
// that asymmetry with Apply is the observed product behavior and is pinned
// here on purpose.
func TestSyncPushesOnlyMissingEquipmentTypes(t *testing.T) {
	f := newFixture(t)
	fac := f.facility(t, catalog.ComplexityWaived)
	tpl := f.template(t, "Base")

	f.attachEquipment(t, tpl, f.equipmentDef(t, "Analyzer", "analyzer", nil), 1, 1)
	f.attachEquipment(t, tpl, f.equipmentDef(t, "Centrifuge", "centrifuge", []string{catalog.ComplexityHigh}), 2, 1)

	_, err := f.mem.Insert(f.ctx, FacilityEquipmentFQN, map[string]any{
		"facility_id": fac, "equipment_name": "Old Analyzer", "equipment_type": "analyzer",
	})
	require.NoError(t, err)

	res, err := f.syncer.SyncTemplateToFacility(f.ctx, fac, tpl)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added, "analyzer type already present; high-complexity centrifuge added despite the waived facility")

	eq := f.equipment(t, fac)
	require.Len(t, eq, 2)

	// second push adds nothing
	res, err = f.syncer.SyncTemplateToFacility(f.ctx, fac, tpl)
	require.NoError(t, err)
	assert.Zero(t, res.Added)
}

func TestSyncTemplateToFacilitiesFansOut(t *testing.T) {
	f := newFixture(t)
	tpl := f.template(t, "Base")
	f.attachEquipment(t, tpl, f.equipmentDef(t, "Analyzer", "analyzer", nil), 1, 1)

	facA := f.facility(t, "")
	facB := f.facility(t, "")
	other := f.facility(t, "") // not on this template

	for _, id := range []string{facA, facB} {
		_, err := f.mem.Patch(f.ctx, FacilityFQN, id, store.NoVersionCheck, map[string]any{"template_id": tpl})
		require.NoError(t, err)
	}
	// facA already has the type
	_, err := f.mem.Insert(f.ctx, FacilityEquipmentFQN, map[string]any{
		"facility_id": facA, "equipment_name": "Analyzer", "equipment_type": "analyzer",
	})
	require.NoError(t, err)

	results, err := f.syncer.SyncTemplateToFacilities(f.ctx, tpl)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]FacilitySyncResult{}
	for _, r := range results {
		byID[r.FacilityID] = r
	}
	assert.Zero(t, byID[facA].Added)
	assert.Equal(t, 1, byID[facB].Added)
	assert.Empty(t, f.equipment(t, other))
}

func TestApplyUnknownTemplateOrFacility(t *testing.T) {
	f := newFixture(t)
	fac := f.facility(t, "")
	tpl := f.template(t, "Base")

	_, err := f.syncer.ApplyTemplateToFacility(f.ctx, fac, "missing", DefaultApplyOptions())
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.syncer.ApplyTemplateToFacility(f.ctx, "missing", tpl, DefaultApplyOptions())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// equipmentFailStore makes the equipment batch fail after milestones have
// been committed.
type equipmentFailStore struct {
	*store.Memory
}

func (s *equipmentFailStore) BulkInsert(ctx context.Context, entity string, rows []map[string]any) ([]*store.Record, error) {
	if entity == FacilityEquipmentFQN {
		return nil, errors.New("equipment insert rejected")
	}
	return s.Memory.BulkInsert(ctx, entity, rows)
}

func TestApplyHasNoCrossEntityRollback(t *testing.T) {
	f := newFixture(t)
	fac := f.facility(t, "")
	tpl := f.template(t, "Base")
	f.attachMilestone(t, tpl, f.milestoneDef(t, "A", "regulatory", nil, 1), 1, 0)
	f.attachEquipment(t, tpl, f.equipmentDef(t, "Analyzer", "analyzer", nil), 1, 1)

	failing := NewSyncer(&equipmentFailStore{Memory: f.mem})
	res, err := failing.ApplyTemplateToFacility(f.ctx, fac, tpl, DefaultApplyOptions())
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.AddedMilestones, "milestone batch stays committed")

	assert.Len(t, f.milestones(t, fac), 1)
	assert.Empty(t, f.equipment(t, fac))
}
