package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRemoteRequest(t *testing.T) {
	before := testutil.ToFloat64(remoteRequestsTotal.WithLabelValues("sheets", "200"))
	ObserveRemoteRequest("sheets", 200, 30*time.Millisecond)
	after := testutil.ToFloat64(remoteRequestsTotal.WithLabelValues("sheets", "200"))
	if after != before+1 {
		t.Fatalf("counter moved %v to %v", before, after)
	}

	beforeErr := testutil.ToFloat64(remoteRequestsTotal.WithLabelValues("drive", "error"))
	ObserveRemoteRequest("drive", 0, time.Millisecond)
	afterErr := testutil.ToFloat64(remoteRequestsTotal.WithLabelValues("drive", "error"))
	if afterErr != beforeErr+1 {
		t.Fatal("transport failure not counted under the error label")
	}
}

func TestCountSyncRun(t *testing.T) {
	before := testutil.ToFloat64(syncRunsTotal.WithLabelValues("routines", "error"))
	CountSyncRun("routines", errors.New("boom"))
	after := testutil.ToFloat64(syncRunsTotal.WithLabelValues("routines", "error"))
	if after != before+1 {
		t.Fatalf("counter moved %v to %v", before, after)
	}
}

func TestMiddlewareCountsRequests(t *testing.T) {
	handler := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/ping"))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ping", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/ping"))
	if after != before+1 {
		t.Fatalf("counter moved %v to %v", before, after)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	CountSyncRun("anchors", nil)
	recorder := httptest.NewRecorder()
	Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("metrics endpoint: %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "lifeops_sync_runs_total") {
		t.Fatal("sync counter not exposed")
	}
}
