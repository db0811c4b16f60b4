package jenkins

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cronwatch/pkg/logx"
)

func testClient(t *testing.T, baseURL string, maxAttempts int) *Client {
	t.Helper()
	c, err := NewClient(Options{
		BaseURL:        baseURL,
		MaxAttempts:    maxAttempts,
		RetryBaseDelay: time.Millisecond,
		Timeout:        5 * time.Second,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestRetryRecoversFromServerErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"name":"nightly","lastBuild":{"number":7,"url":"` + "http://upstream/job/nightly/7/" + `"}}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 3)
	js, err := c.JobSummary(context.Background(), "nightly")
	if err != nil {
		t.Fatalf("JobSummary: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("upstream saw %d requests, want 3", got)
	}
	if js.LastBuild == nil || js.LastBuild.Number != 7 {
		t.Fatalf("unexpected summary: %+v", js)
	}
}

func TestRetryExhaustionReturnsLastServerResponse(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 3)
	resp, err := c.do(context.Background(), srv.URL+"/api/json")
	if err != nil {
		t.Fatalf("do returned error %v, want the final 5xx response", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("upstream saw %d requests, want 3", got)
	}
}

func TestRetryExhaustionSurfacesStatusError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 2)
	_, err := c.JobSummary(context.Background(), "nightly")
	var use *UpstreamStatusError
	if !errors.As(err, &use) {
		t.Fatalf("error = %v, want UpstreamStatusError", err)
	}
	if use.Status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", use.Status)
	}
}

func TestClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 3)
	_, err := c.JobSummary(context.Background(), "missing-job")
	var use *UpstreamStatusError
	if !errors.As(err, &use) || use.Status != http.StatusNotFound {
		t.Fatalf("error = %v, want UpstreamStatusError{404}", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("upstream saw %d requests, want 1 (4xx must not retry)", got)
	}
}

func TestTransportFailureExhaustion(t *testing.T) {
	t.Parallel()
	// Point at a closed listener so every attempt fails to connect.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead := srv.URL
	srv.Close()

	c := testClient(t, dead, 3)
	_, err := c.JobSummary(context.Background(), "nightly")
	var re *RetrievalError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want RetrievalError", err)
	}
	if re.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", re.Attempts)
	}
	if re.Unwrap() == nil {
		t.Fatal("expected wrapped transport error")
	}
}

func TestLastBuildUsesConfiguredHostOnMismatch(t *testing.T) {
	t.Parallel()
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		_, _ = w.Write([]byte(`{"number":15,"timestamp":1733529600000,"result":"SUCCESS","displayName":"#15"}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 1)
	snap, err := c.LastBuild(context.Background(), BuildRef{
		Number: 15,
		URL:    "http://10.0.0.5:8080/job/x/15/",
	})
	if err != nil {
		t.Fatalf("LastBuild: %v", err)
	}
	if p, _ := gotPath.Load().(string); p != "/job/x/15/api/json" {
		t.Fatalf("request path = %q, want /job/x/15/api/json", p)
	}
	if snap.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want success", snap.Outcome)
	}
	if want := time.UnixMilli(1733529600000).UTC(); !snap.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", snap.Timestamp, want)
	}
}

func TestLastBuildRunning(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"number":16,"timestamp":1733529600000,"result":null,"displayName":"#16"}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 1)
	snap, err := c.LastBuild(context.Background(), BuildRef{Number: 16, URL: srv.URL + "/job/x/16/"})
	if err != nil {
		t.Fatalf("LastBuild: %v", err)
	}
	if snap.Outcome != OutcomeRunning {
		t.Fatalf("outcome = %v, want running", snap.Outcome)
	}
	if snap.Result != nil {
		t.Fatalf("result = %v, want nil", *snap.Result)
	}
}
