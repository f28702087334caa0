package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEntity = "ops.facility"

func TestInsertGetRoundTrip(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	rec, err := mem.Insert(ctx, testEntity, map[string]any{"facility_name": "North Lab"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, int64(1), rec.Version)

	got, err := mem.Get(ctx, testEntity, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "North Lab", got.Data["facility_name"])
}

func TestUnknownEntityRejected(t *testing.T) {
	mem := NewMemory()
	_, err := mem.Insert(context.Background(), "nope.nothing", map[string]any{})
	assert.ErrorIs(t, err, ErrEntityUnknown)
}

func TestReturnedRecordIsACopy(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	rec, err := mem.Insert(ctx, testEntity, map[string]any{"facility_name": "A"})
	require.NoError(t, err)
	rec.Data["facility_name"] = "mutated"

	got, err := mem.Get(ctx, testEntity, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Data["facility_name"])
}

func TestUpdateVersionCheck(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	rec, err := mem.Insert(ctx, testEntity, map[string]any{"facility_name": "A"})
	require.NoError(t, err)

	_, err = mem.Update(ctx, testEntity, rec.ID, 99, map[string]any{"facility_name": "B"})
	assert.ErrorIs(t, err, ErrVersionConflict)

	up, err := mem.Update(ctx, testEntity, rec.ID, 1, map[string]any{"facility_name": "B"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), up.Version)
	assert.Equal(t, "B", up.Data["facility_name"])

	// full replace drops unmentioned fields
	_, ok := up.Data["status"]
	assert.False(t, ok)
}

func TestPatchMergesAndSkipsVersionWhenAsked(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	rec, err := mem.Insert(ctx, testEntity, map[string]any{"facility_name": "A", "status": "planning"})
	require.NoError(t, err)

	p, err := mem.Patch(ctx, testEntity, rec.ID, NoVersionCheck, map[string]any{"status": "live"})
	require.NoError(t, err)
	assert.Equal(t, "A", p.Data["facility_name"])
	assert.Equal(t, "live", p.Data["status"])
	assert.Equal(t, int64(2), p.Version)

	_, err = mem.Patch(ctx, testEntity, rec.ID, 1, map[string]any{"status": "on_hold"})
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestSoftDeleteAndRestore(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	rec, err := mem.Insert(ctx, testEntity, map[string]any{"facility_name": "A"})
	require.NoError(t, err)
	require.NoError(t, mem.Delete(ctx, testEntity, rec.ID))

	_, err = mem.Get(ctx, testEntity, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	n, err := mem.Count(ctx, testEntity)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, mem.Restore(ctx, testEntity, rec.ID))
	got, err := mem.Get(ctx, testEntity, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Data["facility_name"])

	assert.ErrorIs(t, mem.Delete(ctx, testEntity, "missing"), ErrNotFound)
}

func TestDeleteTwiceAndRestoreLive(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	rec, err := mem.Insert(ctx, testEntity, map[string]any{"facility_name": "A"})
	require.NoError(t, err)

	require.NoError(t, mem.Delete(ctx, testEntity, rec.ID))
	assert.ErrorIs(t, mem.Delete(ctx, testEntity, rec.ID), ErrNotFound, "second delete sees no live row")

	require.NoError(t, mem.Restore(ctx, testEntity, rec.ID))
	assert.NoError(t, mem.Restore(ctx, testEntity, rec.ID), "restoring a live row is a no-op")

	got, err := mem.Get(ctx, testEntity, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version, "no-op restore does not bump the version")
}

func TestSelectFilterSortPage(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	for i, name := range []string{"C", "A", "B", "D"} {
		status := "planning"
		if i%2 == 0 {
			status = "live"
		}
		_, err := mem.Insert(ctx, testEntity, map[string]any{"facility_name": name, "status": status})
		require.NoError(t, err)
	}

	recs, err := mem.Select(ctx, Query{
		Entity:  testEntity,
		Filters: []Filter{Eq("status", "live")},
		Order:   []Order{{Field: "facility_name"}},
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "B", recs[0].Data["facility_name"])
	assert.Equal(t, "C", recs[1].Data["facility_name"])

	page, err := mem.Select(ctx, Query{
		Entity: testEntity,
		Order:  []Order{{Field: "facility_name", Desc: true}},
		Limit:  2,
		Offset: 1,
	})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "C", page[0].Data["facility_name"])
	assert.Equal(t, "B", page[1].Data["facility_name"])
}

func TestSelectNumericOrderAndOps(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	for _, p := range []int{10, 2, 33} {
		_, err := mem.Insert(ctx, "ops.facility_milestone", map[string]any{
			"facility_id": "f", "title": "t", "category": "site", "priority": p,
		})
		require.NoError(t, err)
	}

	recs, err := mem.Select(ctx, Query{
		Entity: "ops.facility_milestone",
		Order:  []Order{{Field: "priority"}},
	})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, 2, recs[0].Data["priority"], "numeric compare, not lexicographic")
	assert.Equal(t, 33, recs[2].Data["priority"])

	n, err := mem.Count(ctx, "ops.facility_milestone", Gte("priority", 10))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBulkInsert(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	recs, err := mem.BulkInsert(ctx, testEntity, []map[string]any{
		{"facility_name": "A"}, {"facility_name": "B"},
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.NotEqual(t, recs[0].ID, recs[1].ID)

	n, err := mem.Count(ctx, testEntity)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestClockInjection(t *testing.T) {
	mem := NewMemory()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mem.SetClock(func() time.Time { return fixed })

	rec, err := mem.Insert(context.Background(), testEntity, map[string]any{"facility_name": "A"})
	require.NoError(t, err)
	assert.True(t, rec.CreatedAt.Equal(fixed))
	assert.True(t, rec.UpdatedAt.Equal(fixed))
}

func TestValidateRegistry(t *testing.T) {
	assert.NoError(t, ValidateRegistry())
}

func TestNormalize(t *testing.T) {
	fqn, _, ok := Normalize("ops", "facility")
	require.True(t, ok)
	assert.Equal(t, "ops.facility", fqn)

	fqn, _, ok = Normalize("org", "projects") // trailing s tolerated
	require.True(t, ok)
	assert.Equal(t, "org.project", fqn)

	_, _, ok = Normalize("nope", "thing")
	assert.False(t, ok)
}
