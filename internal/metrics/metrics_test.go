package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/instruments/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/instruments/{id}", "404"))
	for _, id := range []string{"bitcoin", "ethereum"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/instruments/"+id, nil))
	}
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/instruments/{id}", "404"))

	if after-before != 2 {
		t.Errorf("counter delta = %v, want 2", after-before)
	}
}

func TestMiddleware_UnmatchedPathsShareOneLabel(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", unmatchedRoute, "404"))
	series := testutil.CollectAndCount(HTTPRequestsTotal)
	for _, path := range []string{"/wp-admin", "/.env", "/admin/config.php"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", unmatchedRoute, "404"))

	if after-before != 3 {
		t.Errorf("counter delta = %v, want 3", after-before)
	}
	if n := testutil.CollectAndCount(HTTPRequestsTotal); n != series {
		t.Errorf("series = %d, want %d (no per-path series)", n, series)
	}
}

func TestStatusWriter_HijackUnsupported(t *testing.T) {
	w := &statusWriter{ResponseWriter: httptest.NewRecorder(), status: 200}
	if _, _, err := w.Hijack(); err == nil {
		t.Error("expected error hijacking a recorder")
	}
}
