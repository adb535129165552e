package run

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/weibo-seed/internal/graph"
	"github.com/zhouzirui/weibo-seed/internal/model/persona"
	"github.com/zhouzirui/weibo-seed/internal/service/bootstrap"
	"github.com/zhouzirui/weibo-seed/internal/store"
)

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	runs := store.NewMemoryStore()
	err := runs.SaveRun(context.Background(), store.Run{
		RunInfo: store.RunInfo{
			ID:          "run-1",
			DatasetPath: "weibo.json",
			StartedAt:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			Summary:     bootstrap.Summary{Registered: 2, Follows: 1},
		},
		Personas: []store.Persona{
			{AgentID: 0, UserID: 1, DatasetID: "A", Profile: persona.Profile{Username: "alice"}},
			{AgentID: 1, UserID: 2, DatasetID: "B", Profile: persona.Profile{Username: "bob"}},
		},
		Edges: []graph.Edge{{Source: 0, Target: 1}},
	})
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if err := runs.SaveRun(context.Background(), store.Run{RunInfo: store.RunInfo{ID: "empty"}}); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	r := chi.NewRouter()
	New(runs, nil).RegisterRoutes(r)
	return r
}

func get(t *testing.T, r http.Handler, path string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if out != nil && resp.Code == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.Code
}

func TestListRuns(t *testing.T) {
	r := setupRouter(t)
	var runs []store.RunInfo
	if code := get(t, r, "/runs", &runs); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(runs) != 2 || runs[0].ID != "run-1" {
		t.Fatalf("unexpected runs %+v", runs)
	}
}

func TestGetRun(t *testing.T) {
	r := setupRouter(t)
	var info store.RunInfo
	if code := get(t, r, "/runs/run-1", &info); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if info.Summary.Registered != 2 || info.DatasetPath != "weibo.json" {
		t.Fatalf("unexpected run %+v", info)
	}
}

func TestGetRunNotFound(t *testing.T) {
	r := setupRouter(t)
	for _, path := range []string{"/runs/missing", "/runs/missing/personas", "/runs/missing/edges"} {
		if code := get(t, r, path, nil); code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, code)
		}
	}
}

func TestListPersonasAndEdges(t *testing.T) {
	r := setupRouter(t)

	var personas []store.Persona
	if code := get(t, r, "/runs/run-1/personas", &personas); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(personas) != 2 || personas[1].Profile.Username != "bob" {
		t.Fatalf("unexpected personas %+v", personas)
	}

	var edges []graph.Edge
	if code := get(t, r, "/runs/run-1/edges", &edges); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(edges) != 1 || edges[0] != (graph.Edge{Source: 0, Target: 1}) {
		t.Fatalf("unexpected edges %+v", edges)
	}
}

func TestEmptyRunListsAreArrays(t *testing.T) {
	r := setupRouter(t)
	for _, path := range []string{"/runs/empty/personas", "/runs/empty/edges"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
		if body := resp.Body.String(); body != "[]\n" {
			t.Fatalf("%s: expected empty array, got %q", path, body)
		}
	}
}
