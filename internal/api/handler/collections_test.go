package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkessler/libmirror/internal/config"
	"github.com/mkessler/libmirror/internal/domain"
)

func cid(v int64) *domain.CollectionID {
	id := domain.CollectionID(v)
	return &id
}

func TestCollectionsHandler_List(t *testing.T) {
	lib := &fakeLibrary{collections: []domain.Collection{
		{ID: 1, Name: "Root"},
		{ID: 2, Name: "A", ParentID: cid(1)},
		{ID: 3, Name: "B", ParentID: cid(1)},
	}}
	cfg := &config.Config{
		Export: config.ExportConfig{
			OutputRoot:        "/data/mirror",
			DefaultCollection: "Root",
		},
	}
	h := NewCollectionsHandler(fakeOpener{lib: lib}, cfg, testLogger())

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/collections", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp CollectionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.DefaultCollection != "Root" || resp.OutputRoot != "/data/mirror" {
		t.Errorf("config echo = %+v", resp)
	}
	if len(resp.Tree) != 1 {
		t.Fatalf("got %d roots, want 1", len(resp.Tree))
	}
	root := resp.Tree[0]
	if root.Name != "Root" || root.ID != 1 {
		t.Errorf("root = %+v", root)
	}
	if len(root.Children) != 2 {
		t.Fatalf("got %d children, want 2", len(root.Children))
	}
	if root.Children[0].Name != "A" || root.Children[1].Name != "B" {
		t.Errorf("children = %+v", root.Children)
	}
	if root.Children[0].Children == nil {
		t.Error("leaf children should encode as [], not null")
	}
}

func TestCollectionsHandler_List_DatabaseUnavailable(t *testing.T) {
	h := NewCollectionsHandler(fakeOpener{err: domain.ErrDatabaseUnavailable}, &config.Config{}, testLogger())

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/collections", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
