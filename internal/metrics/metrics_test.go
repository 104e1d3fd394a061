package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	m := New()
	m.ConnectionsTotal.Inc()
	m.KeyspaceSize.Set(42)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "kvstore_connections_total 1") {
		t.Fatalf("missing connections_total in output:\n%s", body)
	}
	if !strings.Contains(body, "kvstore_keyspace_size 42") {
		t.Fatalf("missing keyspace_size in output:\n%s", body)
	}
}

func TestNewDoesNotPanicOnMultipleInstances(t *testing.T) {
	_ = New()
	_ = New()
}
