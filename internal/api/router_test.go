package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labops/internal/blob"
	"labops/internal/catalog"
	"labops/internal/deploy"
	"labops/internal/integration"
	"labops/internal/invite"
	"labops/internal/reference"
	"labops/internal/report"
	"labops/internal/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mem := store.NewMemory()
	local, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)
	refs := reference.NewService(mem)
	srv := NewServer(Deps{
		Store:   mem,
		Refs:    refs,
		Catalog: catalog.NewService(mem, local),
		Syncer:  deploy.NewSyncer(mem),
		Invites: invite.NewService(mem, invite.LogMailer{}),
		Stratus: integration.NewService(mem),
		Reports: report.NewService(mem),
	})
	return NewRouter(srv), mem
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func TestGenericCRUDLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/ops/facilities", map[string]any{
		"facility_name": "North Lab", "status": "planning",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	id := created["id"].(string)
	assert.Equal(t, float64(1), created["version"])

	w = doJSON(t, r, http.MethodGet, "/api/ops/facilities", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-Total-Count"))

	w = doJSON(t, r, http.MethodGet, "/api/ops/facilities/"+id, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"1"`, w.Header().Get("ETag"))

	// patch without a version is a conflict
	w = doJSON(t, r, http.MethodPatch, "/api/ops/facilities/"+id, map[string]any{"status": "live"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPatch, "/api/ops/facilities/"+id, map[string]any{"status": "live"},
		map[string]string{"If-Match": `"1"`})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	patched := decode(t, w)
	assert.Equal(t, float64(2), patched["version"])
	assert.Equal(t, "North Lab", patched["facility_name"])

	// stale version loses
	w = doJSON(t, r, http.MethodPatch, "/api/ops/facilities/"+id, map[string]any{"status": "on_hold"},
		map[string]string{"If-Match": `"1"`})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/ops/facilities/"+id, nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, r, http.MethodGet, "/api/ops/facilities/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/ops/facilities/"+id+"/restore", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodGet, "/api/ops/facilities/"+id, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/ops/facilities", map[string]any{"status": "planning"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	errs := body["errors"].([]any)
	first := errs[0].(map[string]any)
	assert.Equal(t, "required", first["code"])
	assert.Equal(t, "facility_name", first["field"])

	w = doJSON(t, r, http.MethodPost, "/api/ops/facilities", map[string]any{
		"facility_name": "X", "no_such_field": 1,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/ops/facilities", map[string]any{
		"facility_name": "X", "go_live_date": "not-a-date",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// dangling ref is a conflict
	w = doJSON(t, r, http.MethodPost, "/api/org/projects", map[string]any{
		"organization_id": "missing", "name": "Rollout",
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/nope/things", map[string]any{"a": 1}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListFiltersAndCount(t *testing.T) {
	r, mem := newTestRouter(t)
	ctx := context.Background()
	for i, status := range []string{"planning", "live", "live"} {
		_, err := mem.Insert(ctx, "ops.facility", map[string]any{
			"facility_name": fmt.Sprintf("Lab %d", i), "status": status,
		})
		require.NoError(t, err)
	}

	w := doJSON(t, r, http.MethodGet, "/api/ops/facilities?status=live&sort=facility_name", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-Total-Count"))

	w = doJSON(t, r, http.MethodGet, "/api/ops/facilities/count?status__in=live,planning", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decode(t, w)["total"])
}

func TestBulkCreateMixedResults(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/ops/facilities/_bulk", []map[string]any{
		{"facility_name": "A"},
		{"status": "planning"}, // missing required name
	}, nil)
	require.Equal(t, http.StatusMultiStatus, w.Code)
	var results []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Contains(t, results[0], "id")
	assert.Contains(t, results[1], "errors")
}

func TestReferenceRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/core/reference", map[string]any{
		"category": "facility_status", "code": "Go Live!", "display_name": "Go Live", "color": "#22c55e",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode(t, w)
	assert.Equal(t, "go_live_", item["code"])

	w = doJSON(t, r, http.MethodGet, "/api/core/reference/facility_status", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/core/reference/facility_status/labels/go_live_", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	labels := decode(t, w)
	assert.Equal(t, "Go Live", labels["display_name"])

	// unknown code falls back, never errors
	w = doJSON(t, r, http.MethodGet, "/api/core/reference/facility_status/labels/mystery", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	labels = decode(t, w)
	assert.Equal(t, "mystery", labels["display_name"])
	assert.Equal(t, "#9ca3af", labels["color"])

	w = doJSON(t, r, http.MethodGet, "/api/core/reference/facility_status/usage?code=go_live_", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["usage"])

	w = doJSON(t, r, http.MethodPost, "/api/core/reference/migrate", map[string]any{
		"category": "facility_status", "from": "go_live_", "to": "nowhere",
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "target code must exist")
}

func TestTemplateApplyRoute(t *testing.T) {
	r, mem := newTestRouter(t)
	ctx := context.Background()

	fac, err := mem.Insert(ctx, "ops.facility", map[string]any{"facility_name": "Lab"})
	require.NoError(t, err)
	tpl, err := mem.Insert(ctx, deploy.TemplateFQN, map[string]any{"template_name": "Base"})
	require.NoError(t, err)
	def, err := mem.Insert(ctx, catalog.MilestoneTemplateFQN, map[string]any{
		"title": "Walkthrough", "category": "site",
	})
	require.NoError(t, err)
	_, err = mem.Insert(ctx, deploy.TemplateMilestoneFQN, map[string]any{
		"template_id": tpl.ID, "milestone_template_id": def.ID, "sort_order": 1,
	})
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/api/deploy/templates/"+tpl.ID+"/apply",
		map[string]any{"facility_id": fac.ID}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode(t, w)
	assert.Equal(t, true, res["success"])
	assert.Equal(t, float64(1), res["addedMilestones"])

	w = doJSON(t, r, http.MethodPost, "/api/deploy/templates/"+tpl.ID+"/sync-all", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/deploy/templates/missing/apply",
		map[string]any{"facility_id": fac.ID}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvitationRoutes(t *testing.T) {
	r, mem := newTestRouter(t)
	org, err := mem.Insert(context.Background(), "org.organization", map[string]any{"name": "Acme"})
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/api/org/invitations", map[string]any{
		"organization_id": org.ID, "email": "tech@example.com", "role": "member",
	}, map[string]string{"X-User": "admin-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	inv := decode(t, w)
	token := inv["token"].(string)
	require.NotEmpty(t, token)

	w = doJSON(t, r, http.MethodPost, "/api/org/invitations/accept",
		map[string]any{"token": token}, map[string]string{"X-User": "user-7"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "accepted", decode(t, w)["status"])

	// missing identity header
	w = doJSON(t, r, http.MethodPost, "/api/org/invitations/accept",
		map[string]any{"token": token}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/org/invitations/expire", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["expired"])
}

func TestDocumentUploadRoute(t *testing.T) {
	r, mem := newTestRouter(t)
	eq, err := mem.Insert(context.Background(), catalog.EquipmentItemFQN, map[string]any{
		"equipment_name": "Analyzer", "equipment_type": "analyzer",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "manual.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("pdf bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/catalog/equipment/"+eq.ID+"/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User", "admin-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	doc := decode(t, w)
	docID := doc["id"].(string)

	wr := doJSON(t, r, http.MethodGet, "/api/catalog/equipment/"+eq.ID+"/documents", nil, nil)
	require.Equal(t, http.StatusOK, wr.Code)

	wr = doJSON(t, r, http.MethodGet, "/api/documents/"+docID+"/url", nil, nil)
	require.Equal(t, http.StatusOK, wr.Code)
	assert.NotEmpty(t, decode(t, wr)["url"])
}

func TestReportAndStratusRoutes(t *testing.T) {
	r, mem := newTestRouter(t)
	ctx := context.Background()

	fac, err := mem.Insert(ctx, "ops.facility", map[string]any{"facility_name": "Lab"})
	require.NoError(t, err)
	_, err = mem.Insert(ctx, "ops.facility_milestone", map[string]any{
		"facility_id": fac.ID, "title": "A", "category": "site", "status": "completed",
	})
	require.NoError(t, err)
	_, err = mem.Insert(ctx, "integration.stratus_mapping", map[string]any{
		"facility_id": fac.ID, "stratus_facility_code": "STR-7",
	})
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodGet, "/api/report/facilities/"+fac.ID+"/progress", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(100), decode(t, w)["percent_complete"])

	w = doJSON(t, r, http.MethodGet, "/api/integration/stratus/STR-7", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, fac.ID, decode(t, w)["facility_id"])

	w = doJSON(t, r, http.MethodGet, "/api/integration/stratus/STR-404", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetaRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/meta", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	assert.Equal(t, len(store.Registry), len(rows))

	w = doJSON(t, r, http.MethodGet, "/api/meta/ops/facility", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	meta := decode(t, w)
	assert.Equal(t, "ops_facilities", meta["table"])
}
