package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zhouzirui/weibo-seed/internal/store"
)

func TestRouterServesHealthAndRuns(t *testing.T) {
	r := NewRouter(store.NewMemoryStore(), nil)

	for path, want := range map[string]int{
		"/healthz":       http.StatusOK,
		"/api/runs":      http.StatusOK,
		"/api/runs/nope": http.StatusNotFound,
		"/api/unknown":   http.StatusNotFound,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != want {
			t.Fatalf("%s: expected %d, got %d", path, want, resp.Code)
		}
	}
}
