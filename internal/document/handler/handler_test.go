package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/docrev/docrev/internal/document/repository"
	"github.com/docrev/docrev/internal/document/service"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	svc := service.New(repository.NewMemoryStore("_id"), service.Options{DefaultPageSize: 10, MaxPageSize: 50})
	RegisterDocumentRoutes(g, svc, nil)
	return g
}

func doJSON(t *testing.T, g *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	g.ServeHTTP(w, req)
	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func TestDocumentLifecycle(t *testing.T) {
	g := newTestRouter()

	// create
	w, created := doJSON(t, g, http.MethodPost, "/api/documents", `{"name":"A","age":5}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id, _ := created["_id"].(string)
	require.NotEmpty(t, id)
	rev := created["revision"].(map[string]any)
	require.EqualValues(t, 1, rev["id"])

	// get, history elided
	w, got := doJSON(t, g, http.MethodGet, "/api/documents/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "A", got["name"])
	_, present := got["revision"].(map[string]any)["history"]
	require.False(t, present)

	// patch with echoed revision
	w, patched := doJSON(t, g, http.MethodPatch, "/api/documents/"+id, `{"name":"B","revision":{"id":1}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "B", patched["name"])
	require.EqualValues(t, 5, patched["age"])
	require.EqualValues(t, 2, patched["revision"].(map[string]any)["id"])

	// stale revision -> conflict
	w, _ = doJSON(t, g, http.MethodPut, "/api/documents/"+id, `{"name":"C","revision":{"id":1}}`)
	require.Equal(t, http.StatusConflict, w.Code)

	// missing revision -> precondition failed
	w, _ = doJSON(t, g, http.MethodPatch, "/api/documents/"+id, `{"name":"C"}`)
	require.Equal(t, http.StatusPreconditionFailed, w.Code)

	// full replace drops omitted fields
	w, replaced := doJSON(t, g, http.MethodPut, "/api/documents/"+id, `{"name":"C","revision":{"id":2}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "C", replaced["name"])
	_, present = replaced["age"]
	require.False(t, present)

	// history endpoint returns every snapshot
	w, full := doJSON(t, g, http.MethodGet, "/api/documents/"+id+"/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	history := full["revision"].(map[string]any)["history"].([]any)
	require.Len(t, history, 2)

	// delete
	w, _ = doJSON(t, g, http.MethodDelete, "/api/documents/"+id, "")
	require.Equal(t, http.StatusNoContent, w.Code)
	w, _ = doJSON(t, g, http.MethodGet, "/api/documents/"+id, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateRejectsArrayPayload(t *testing.T) {
	g := newTestRouter()
	w, _ := doJSON(t, g, http.MethodPost, "/api/documents", `{"name":"A"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created["_id"].(string)

	w, _ = doJSON(t, g, http.MethodPut, "/api/documents/"+id, `[{"name":"B"}]`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListWithFiltersAndSelection(t *testing.T) {
	g := newTestRouter()
	for i := 0; i < 3; i++ {
		body := fmt.Sprintf(`{"name":"doc-%d","kind":"thing"}`, i)
		w, _ := doJSON(t, g, http.MethodPost, "/api/documents", body)
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w, _ := doJSON(t, g, http.MethodPost, "/api/documents", `{"name":"other","kind":"misc"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	// equality filter plus paging
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/documents?kind=thing&$limit=2&$sort=name", nil)
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	require.Equal(t, "doc-0", list[0]["name"])

	// $select still hides history
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/documents?kind=thing&$select=name,revision", nil)
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	list = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.NotEmpty(t, list)
	for _, d := range list {
		if rev, ok := d["revision"].(map[string]any); ok {
			_, present := rev["history"]
			require.False(t, present)
		}
	}

	// malformed control parameter
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/documents?$limit=abc", nil)
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestArchiveUnconfigured(t *testing.T) {
	g := newTestRouter()
	w, created := doJSON(t, g, http.MethodPost, "/api/documents", `{"name":"A"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := created["_id"].(string)

	w, _ = doJSON(t, g, http.MethodPost, "/api/documents/"+id+"/archive", "")
	require.Equal(t, http.StatusNotImplemented, w.Code)
}
