package deploy

import (
	"context"
	"fmt"
	"log"
	"sync"

	"labops/internal/catalog"
	"labops/internal/metrics"
	"labops/internal/store"
)

// Syncer applies templates to facilities. Applies and syncs against the
// same facility are serialized through a keyed mutex: two concurrent
// applies would otherwise both read "existing" state before either writes
// and create duplicate rows.
type Syncer struct {
	store store.Store
	locks keyedLocks
}

func NewSyncer(st store.Store) *Syncer {
	return &Syncer{store: st}
}

type keyedLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (k *keyedLocks) acquire(key string) func() {
	k.mu.Lock()
	if k.m == nil {
		k.m = make(map[string]*sync.Mutex)
	}
	l, ok := k.m[key]
	if !ok {
		l = &sync.Mutex{}
		k.m[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// LoadTemplate resolves a template with its milestone and equipment
// associations fully expanded, in sort order. Associations pointing at
// catalog rows that no longer exist are skipped with a log line.
func (s *Syncer) LoadTemplate(ctx context.Context, templateID string) (Template, error) {
	rec, err := s.store.Get(ctx, TemplateFQN, templateID)
	if err != nil {
		return Template{}, err
	}
	tpl := templateFromRecord(rec)

	mrecs, err := s.store.Select(ctx, store.Query{
		Entity:  TemplateMilestoneFQN,
		Filters: []store.Filter{store.Eq("template_id", templateID)},
		Order:   []store.Order{{Field: "sort_order"}, {Field: "created_at"}},
	})
	if err != nil {
		return Template{}, fmt.Errorf("load template milestones: %w", err)
	}
	for _, m := range mrecs {
		defID := asString(m.Data["milestone_template_id"])
		def, err := s.store.Get(ctx, catalog.MilestoneTemplateFQN, defID)
		if err == store.ErrNotFound {
			log.Printf("template %s: milestone definition %s is gone, skipping", templateID, defID)
			continue
		}
		if err != nil {
			return Template{}, err
		}
		tpl.Milestones = append(tpl.Milestones, TemplateMilestone{
			ID:               m.ID,
			Required:         asBool(m.Data["is_required"]),
			PriorityOverride: asInt(m.Data["priority_override"]),
			SortOrder:        asInt(m.Data["sort_order"]),
			Milestone:        catalog.MilestoneFromRecord(def),
		})
	}

	erecs, err := s.store.Select(ctx, store.Query{
		Entity:  TemplateEquipmentFQN,
		Filters: []store.Filter{store.Eq("template_id", templateID)},
		Order:   []store.Order{{Field: "sort_order"}, {Field: "created_at"}},
	})
	if err != nil {
		return Template{}, fmt.Errorf("load template equipment: %w", err)
	}
	for _, e := range erecs {
		defID := asString(e.Data["equipment_item_id"])
		def, err := s.store.Get(ctx, catalog.EquipmentItemFQN, defID)
		if err == store.ErrNotFound {
			log.Printf("template %s: equipment item %s is gone, skipping", templateID, defID)
			continue
		}
		if err != nil {
			return Template{}, err
		}
		tpl.Equipment = append(tpl.Equipment, TemplateEquipment{
			ID:        e.ID,
			Quantity:  asInt(e.Data["quantity"]),
			Required:  asBool(e.Data["is_required"]),
			SortOrder: asInt(e.Data["sort_order"]),
			Equipment: catalog.EquipmentFromRecord(def),
		})
	}
	return tpl, nil
}

// ApplyTemplateToFacility expands a template into concrete facility rows.
// Items already present under the composite identity key — (category,
// title) for milestones, (equipment_type, equipment_name) for equipment —
// are skipped, so re-applying is idempotent. Milestones and equipment are
// inserted as two independent batches.
func (s *Syncer) ApplyTemplateToFacility(ctx context.Context, facilityID, templateID string, opts ApplyOptions) (ApplyResult, error) {
	unlock := s.locks.acquire(facilityID)
	defer unlock()

	var res ApplyResult

	tpl, err := s.LoadTemplate(ctx, templateID)
	if err != nil {
		return res, err
	}
	facility, err := s.store.Get(ctx, FacilityFQN, facilityID)
	if err != nil {
		return res, err
	}

	level := opts.TargetComplexityLevel
	if level == "" {
		level = asString(facility.Data["complexity_level"])
	}
	if level == "" {
		level = catalog.ComplexityWaived
	}

	// record the chosen template on the facility; last write wins and rows
	// from a previously applied template are left in place
	if _, err := s.store.Patch(ctx, FacilityFQN, facilityID, store.NoVersionCheck,
		map[string]any{"template_id": templateID}); err != nil {
		return res, fmt.Errorf("record template on facility: %w", err)
	}

	// milestones
	existingMilestones := map[string]bool{}
	if opts.DeduplicateMilestones {
		recs, err := s.store.Select(ctx, store.Query{
			Entity:  FacilityMilestoneFQN,
			Filters: []store.Filter{store.Eq("facility_id", facilityID)},
		})
		if err != nil {
			return res, fmt.Errorf("load existing milestones: %w", err)
		}
		for _, r := range recs {
			existingMilestones[milestoneKey(asString(r.Data["category"]), asString(r.Data["title"]))] = true
		}
	}

	var milestoneRows []map[string]any
	for _, tm := range tpl.Milestones {
		if !catalog.AppliesTo(tm.Milestone.ApplicableLevels, level) {
			continue
		}
		key := milestoneKey(tm.Milestone.Category, tm.Milestone.Title)
		if existingMilestones[key] {
			res.SkippedMilestones++
			continue
		}
		existingMilestones[key] = true // two template items collapsing to one key insert once
		priority := tm.Milestone.Priority
		if tm.PriorityOverride > 0 {
			priority = tm.PriorityOverride
		}
		milestoneRows = append(milestoneRows, map[string]any{
			"facility_id":           facilityID,
			"title":                 tm.Milestone.Title,
			"category":              tm.Milestone.Category,
			"phase":                 tm.Milestone.Phase,
			"status":                MilestoneNotStarted,
			"priority":              priority,
			"responsible_party":     tm.Milestone.ResponsiblePartyDefault,
			"milestone_order":       len(milestoneRows) + 1, // position among survivors
			"is_required":           tm.Required,
			"from_template":         true,
			"template_milestone_id": tm.ID,
		})
	}
	if len(milestoneRows) > 0 {
		if _, err := s.store.BulkInsert(ctx, FacilityMilestoneFQN, milestoneRows); err != nil {
			return res, fmt.Errorf("insert milestones: %w", err)
		}
	}
	res.AddedMilestones = len(milestoneRows)

	// equipment: symmetric, keyed on (equipment_type, equipment_name)
	existingEquipment := map[string]bool{}
	if opts.DeduplicateEquipment {
		recs, err := s.store.Select(ctx, store.Query{
			Entity:  FacilityEquipmentFQN,
			Filters: []store.Filter{store.Eq("facility_id", facilityID)},
		})
		if err != nil {
			return res, fmt.Errorf("load existing equipment: %w", err)
		}
		for _, r := range recs {
			existingEquipment[equipmentKey(asString(r.Data["equipment_type"]), asString(r.Data["equipment_name"]))] = true
		}
	}

	var equipmentRows []map[string]any
	for _, te := range tpl.Equipment {
		if !catalog.AppliesTo(te.Equipment.ApplicableLevels, level) {
			continue
		}
		key := equipmentKey(te.Equipment.EquipmentType, te.Equipment.EquipmentName)
		if existingEquipment[key] {
			res.SkippedEquipment++
			continue
		}
		existingEquipment[key] = true
		quantity := te.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		equipmentRows = append(equipmentRows, map[string]any{
			"facility_id":           facilityID,
			"equipment_name":        te.Equipment.EquipmentName,
			"equipment_type":        te.Equipment.EquipmentType,
			"equipment_status":      EquipmentNotOrdered,
			"quantity":              quantity,
			"procurement_method":    te.Equipment.ProcurementMethodDefault,
			"from_template":         true,
			"template_equipment_id": te.ID,
		})
	}
	if len(equipmentRows) > 0 {
		if _, err := s.store.BulkInsert(ctx, FacilityEquipmentFQN, equipmentRows); err != nil {
			// milestones are already committed at this point; report the
			// partial outcome alongside the error
			return res, fmt.Errorf("insert equipment (milestones already committed): %w", err)
		}
	}
	res.AddedEquipment = len(equipmentRows)

	metrics.TemplateRowsAdded.WithLabelValues("milestone", "apply").Add(float64(res.AddedMilestones))
	metrics.TemplateRowsSkipped.WithLabelValues("milestone", "apply").Add(float64(res.SkippedMilestones))
	metrics.TemplateRowsAdded.WithLabelValues("equipment", "apply").Add(float64(res.AddedEquipment))
	metrics.TemplateRowsSkipped.WithLabelValues("equipment", "apply").Add(float64(res.SkippedEquipment))

	res.Success = true
	return res, nil
}

// SyncTemplateToFacility pushes template equipment added since the initial
// apply. Equipment only, keyed by equipment_type alone, and deliberately
// without complexity filtering: the admin push delivers newly catalogued
// equipment to every site regardless of level.
func (s *Syncer) SyncTemplateToFacility(ctx context.Context, facilityID, templateID string) (SyncResult, error) {
	unlock := s.locks.acquire(facilityID)
	defer unlock()

	var res SyncResult

	tpl, err := s.LoadTemplate(ctx, templateID)
	if err != nil {
		return res, err
	}
	if _, err := s.store.Get(ctx, FacilityFQN, facilityID); err != nil {
		return res, err
	}

	recs, err := s.store.Select(ctx, store.Query{
		Entity:  FacilityEquipmentFQN,
		Filters: []store.Filter{store.Eq("facility_id", facilityID)},
	})
	if err != nil {
		return res, fmt.Errorf("load facility equipment: %w", err)
	}
	presentTypes := map[string]bool{}
	for _, r := range recs {
		presentTypes[asString(r.Data["equipment_type"])] = true
	}

	var rows []map[string]any
	for _, te := range tpl.Equipment {
		if presentTypes[te.Equipment.EquipmentType] {
			continue
		}
		presentTypes[te.Equipment.EquipmentType] = true
		quantity := te.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		rows = append(rows, map[string]any{
			"facility_id":           facilityID,
			"equipment_name":        te.Equipment.EquipmentName,
			"equipment_type":        te.Equipment.EquipmentType,
			"equipment_status":      EquipmentNotOrdered,
			"quantity":              quantity,
			"procurement_method":    te.Equipment.ProcurementMethodDefault,
			"from_template":         true,
			"template_equipment_id": te.ID,
		})
	}
	if len(rows) > 0 {
		if _, err := s.store.BulkInsert(ctx, FacilityEquipmentFQN, rows); err != nil {
			return res, fmt.Errorf("insert equipment: %w", err)
		}
	}
	res.Added = len(rows)
	metrics.TemplateRowsAdded.WithLabelValues("equipment", "sync").Add(float64(res.Added))
	return res, nil
}

// SyncTemplateToFacilities fans the equipment sync out to every facility
// currently referencing the template. Each facility succeeds or fails on
// its own; the caller gets per-facility results.
func (s *Syncer) SyncTemplateToFacilities(ctx context.Context, templateID string) ([]FacilitySyncResult, error) {
	if _, err := s.store.Get(ctx, TemplateFQN, templateID); err != nil {
		return nil, err
	}
	facilities, err := s.store.Select(ctx, store.Query{
		Entity:  FacilityFQN,
		Filters: []store.Filter{store.Eq("template_id", templateID)},
		Order:   []store.Order{{Field: "created_at"}},
	})
	if err != nil {
		return nil, fmt.Errorf("load facilities for template: %w", err)
	}

	results := make([]FacilitySyncResult, 0, len(facilities))
	for _, f := range facilities {
		r := FacilitySyncResult{FacilityID: f.ID}
		sync, err := s.SyncTemplateToFacility(ctx, f.ID, templateID)
		if err != nil {
			r.Error = err.Error()
			log.Printf("template %s sync to facility %s failed: %v", templateID, f.ID, err)
		} else {
			r.Added = sync.Added
		}
		results = append(results, r)
	}
	return results, nil
}
