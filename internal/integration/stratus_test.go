package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labops/internal/store"
)

func TestFindStratusMapping(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	fac, err := mem.Insert(ctx, "ops.facility", map[string]any{"facility_name": "North Lab"})
	require.NoError(t, err)
	_, err = mem.Insert(ctx, StratusMappingFQN, map[string]any{
		"facility_id":           fac.ID,
		"stratus_facility_code": "STR-0042",
		"stratus_site_name":     "North Campus",
	})
	require.NoError(t, err)

	svc := NewService(mem)
	m, err := svc.FindStratusMapping(ctx, "STR-0042")
	require.NoError(t, err)
	assert.Equal(t, fac.ID, m.FacilityID)
	assert.Equal(t, "North Campus", m.StratusSiteName)

	_, err = svc.FindStratusMapping(ctx, "STR-9999")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.FindStratusMapping(ctx, "")
	var verr *store.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestMarkSynced(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	rec, err := mem.Insert(ctx, StratusMappingFQN, map[string]any{
		"facility_id":           "f1",
		"stratus_facility_code": "STR-1",
	})
	require.NoError(t, err)

	svc := NewService(mem)
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	require.NoError(t, svc.MarkSynced(ctx, rec.ID, at))

	m, err := svc.FindStratusMapping(ctx, "STR-1")
	require.NoError(t, err)
	assert.True(t, m.LastSyncedAt.Equal(at))
}
