package landingboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jpalmerr/landingboard/internal/store"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePlatform serves the four landing/deploy endpoints and a token endpoint.
type fakePlatform struct {
	*httptest.Server

	mu        sync.Mutex
	documents map[string]string
	statuses  map[string]int

	validPassword string
	tokenCalls    atomic.Int32
	jobsCalls     atomic.Int32
}

func newFakePlatform(t *testing.T) *fakePlatform {
	t.Helper()
	fp := &fakePlatform{
		documents: map[string]string{
			"/landing/v2/status":     `{"nodes":[{"id":"n1","state":"up"}]}`,
			"/landing/v2/capacities": `[{"cpu":128,"gpu":8}]`,
			"/landing/v2/stats":      `{"deployments":42}`,
			"/deploy/v1/jobs":        `{"items":[{"id":"job-1","status":"running"}],"total":1}`,
		},
		statuses:      map[string]int{},
		validPassword: "correct",
	}

	mux := http.NewServeMux()
	for _, path := range []string{"/landing/v2/status", "/landing/v2/capacities", "/landing/v2/stats"} {
		mux.HandleFunc(path, fp.serveDocument)
	}
	mux.HandleFunc("/deploy/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		fp.jobsCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer platform-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fp.serveDocument(w, r)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		fp.tokenCalls.Add(1)
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("grant_type") != "password" || r.PostForm.Get("password") != fp.validPassword {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"platform-token","token_type":"Bearer"}`)
	})

	fp.Server = httptest.NewServer(mux)
	t.Cleanup(fp.Close)
	return fp
}

func (fp *fakePlatform) serveDocument(w http.ResponseWriter, r *http.Request) {
	fp.mu.Lock()
	doc := fp.documents[r.URL.Path]
	status, ok := fp.statuses[r.URL.Path]
	fp.mu.Unlock()
	if !ok {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, doc)
}

func (fp *fakePlatform) set(path, doc string) {
	fp.mu.Lock()
	fp.documents[path] = doc
	fp.mu.Unlock()
}

func (fp *fakePlatform) setStatus(path string, code int) {
	fp.mu.Lock()
	fp.statuses[path] = code
	fp.mu.Unlock()
}

func (fp *fakePlatform) credentials(password string) Credentials {
	return Credentials{
		TokenURL:     fp.URL + "/token",
		ClientID:     "landing",
		ClientSecret: "secret",
		Username:     "svc",
		Password:     password,
	}
}

func newTestBoard(t *testing.T, fp *fakePlatform, password string, extra ...Option) *Board {
	t.Helper()
	opts := []Option{
		WithAPIURL(fp.URL),
		WithCredentials(fp.credentials(password)),
		WithAddr("127.0.0.1:0"),
		WithLogger(testLogger()),
		WithRequestTimeout(2 * time.Second),
	}
	for _, c := range []Category{CategoryStatus, CategoryCapacities, CategoryStats, CategoryJobs} {
		opts = append(opts, WithInterval(c, 10*time.Millisecond))
	}
	b, err := New(append(opts, extra...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return b
}

// startBoard runs b in the background and returns a stop function that
// cancels it and reports Start's result.
func startBoard(t *testing.T, b *Board) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Start(ctx) }()

	waitFor(t, "http server bound", func() bool { return b.Addr() != nil })

	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("Start() did not return after context cancellation")
			return nil
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBoard_AggregatesAllCategories(t *testing.T) {
	fp := newFakePlatform(t)
	b := newTestBoard(t, fp, "correct")
	stop := startBoard(t, b)

	waitFor(t, "all categories populated", func() bool {
		snap := b.Snapshot()
		return string(snap.Status) != `{}` && string(snap.Capacities) != `{}` &&
			string(snap.Stats) != `{}` && string(snap.Jobs) != `{}`
	})

	resp, err := http.Get(fmt.Sprintf("http://%s/", b.Addr()))
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	defer resp.Body.Close()

	var got map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	want := map[string]string{
		"status":     `{"nodes":[{"id":"n1","state":"up"}]}`,
		"capacities": `[{"cpu":128,"gpu":8}]`,
		"stats":      `{"deployments":42}`,
		"jobs":       `{"items":[{"id":"job-1","status":"running"}],"total":1}`,
	}
	for key, value := range want {
		if string(got[key]) != value {
			t.Errorf("%s = %s, want %s", key, got[key], value)
		}
	}

	var date time.Time
	if err := json.Unmarshal(got["date"], &date); err != nil {
		t.Errorf("date is not a timestamp: %s", got["date"])
	} else if time.Since(date) > 5*time.Second {
		t.Errorf("date = %v, want the time of the read", date)
	}

	if err := stop(); err != nil {
		t.Errorf("Start() error = %v", err)
	}

	// one token fetch serves every jobs poll within the TTL
	if calls := fp.tokenCalls.Load(); calls != 1 {
		t.Errorf("token endpoint called %d times, want 1", calls)
	}
}

func TestBoard_PicksUpChanges(t *testing.T) {
	fp := newFakePlatform(t)
	b := newTestBoard(t, fp, "correct")
	stop := startBoard(t, b)
	defer func() { _ = stop() }()

	waitFor(t, "initial stats", func() bool {
		return string(b.Snapshot().Stats) == `{"deployments":42}`
	})

	fp.set("/landing/v2/stats", `{"deployments":43}`)
	waitFor(t, "updated stats", func() bool {
		return string(b.Snapshot().Stats) == `{"deployments":43}`
	})
}

// TestBoard_InvalidCredentials verifies jobs stays at its initial value while
// the unauthenticated categories keep updating.
func TestBoard_InvalidCredentials(t *testing.T) {
	fp := newFakePlatform(t)
	b := newTestBoard(t, fp, "wrong")
	stop := startBoard(t, b)
	defer func() { _ = stop() }()

	waitFor(t, "unauthenticated categories populated", func() bool {
		snap := b.Snapshot()
		return string(snap.Status) != `{}` && string(snap.Capacities) != `{}` && string(snap.Stats) != `{}`
	})
	waitFor(t, "repeated token attempts", func() bool { return fp.tokenCalls.Load() >= 3 })

	fp.set("/landing/v2/status", `{"nodes":[]}`)
	waitFor(t, "status keeps updating", func() bool {
		return string(b.Snapshot().Status) == `{"nodes":[]}`
	})

	if jobs := string(b.Snapshot().Jobs); jobs != `{}` {
		t.Errorf("jobs = %s, want {}", jobs)
	}
	if calls := fp.jobsCalls.Load(); calls != 0 {
		t.Errorf("jobs endpoint called %d times without a token, want 0", calls)
	}
}

// TestBoard_MalformedBodyKeepsLastValue verifies a bad response leaves the
// previous document in place and a later good one replaces it.
func TestBoard_MalformedBodyKeepsLastValue(t *testing.T) {
	fp := newFakePlatform(t)
	b := newTestBoard(t, fp, "correct")
	stop := startBoard(t, b)
	defer func() { _ = stop() }()

	waitFor(t, "initial capacities", func() bool {
		return string(b.Snapshot().Capacities) == `[{"cpu":128,"gpu":8}]`
	})

	fp.set("/landing/v2/capacities", `<html>502 Bad Gateway</html>`)
	time.Sleep(100 * time.Millisecond)
	if got := string(b.Snapshot().Capacities); got != `[{"cpu":128,"gpu":8}]` {
		t.Errorf("capacities = %s, want previous value kept", got)
	}

	fp.set("/landing/v2/capacities", `[{"cpu":64}]`)
	waitFor(t, "recovered capacities", func() bool {
		return string(b.Snapshot().Capacities) == `[{"cpu":64}]`
	})
}

// TestBoard_ErrorStatusBodies verifies JSON bodies sent with an error status
// are installed, except 4xx answers from the jobs endpoint.
func TestBoard_ErrorStatusBodies(t *testing.T) {
	fp := newFakePlatform(t)
	fp.set("/landing/v2/status", `{"maintenance":true}`)
	fp.setStatus("/landing/v2/status", http.StatusServiceUnavailable)
	fp.set("/landing/v2/stats", `{"error":"not found"}`)
	fp.setStatus("/landing/v2/stats", http.StatusNotFound)
	fp.set("/deploy/v1/jobs", `{"error":"forbidden"}`)
	fp.setStatus("/deploy/v1/jobs", http.StatusForbidden)

	b := newTestBoard(t, fp, "correct")
	stop := startBoard(t, b)
	defer func() { _ = stop() }()

	waitFor(t, "error-status bodies installed", func() bool {
		snap := b.Snapshot()
		return string(snap.Status) == `{"maintenance":true}` && string(snap.Stats) == `{"error":"not found"}`
	})
	waitFor(t, "jobs polled", func() bool { return fp.jobsCalls.Load() >= 3 })
	if jobs := string(b.Snapshot().Jobs); jobs != `{}` {
		t.Errorf("jobs = %s, want {} while the endpoint answers 403", jobs)
	}

	fp.set("/deploy/v1/jobs", `{"error":"upstream"}`)
	fp.setStatus("/deploy/v1/jobs", http.StatusInternalServerError)
	waitFor(t, "jobs 5xx body installed", func() bool {
		return string(b.Snapshot().Jobs) == `{"error":"upstream"}`
	})
}

// TestBoard_OversizedBody verifies a body over the limit keeps the previous
// document in place.
func TestBoard_OversizedBody(t *testing.T) {
	fp := newFakePlatform(t)
	b := newTestBoard(t, fp, "correct", WithMaxBodySize(64))
	stop := startBoard(t, b)
	defer func() { _ = stop() }()

	waitFor(t, "initial stats", func() bool {
		return string(b.Snapshot().Stats) == `{"deployments":42}`
	})

	fp.set("/landing/v2/stats", `{"deployments":43,"padding":"`+strings.Repeat("x", 100)+`"}`)
	time.Sleep(100 * time.Millisecond)
	if got := string(b.Snapshot().Stats); got != `{"deployments":42}` {
		t.Errorf("stats = %s, want previous value kept", got)
	}
}

func TestBoard_UpdateCallback(t *testing.T) {
	fp := newFakePlatform(t)

	var statusUpdates atomic.Int32
	b := newTestBoard(t, fp, "correct",
		WithUpdateCallback(func(u Update) {
			if u.Category == CategoryStatus {
				statusUpdates.Add(1)
			}
		}),
		WithUpdateCallback(func(Update) { panic("callback bug") }),
	)
	stop := startBoard(t, b)

	waitFor(t, "status callbacks", func() bool { return statusUpdates.Load() >= 2 })

	if err := stop(); err != nil {
		t.Errorf("Start() error = %v", err)
	}
}

func TestBoard_Metrics(t *testing.T) {
	fp := newFakePlatform(t)
	reg := prometheus.NewRegistry()
	b := newTestBoard(t, fp, "correct", WithRegistry(reg))
	stop := startBoard(t, b)
	defer func() { _ = stop() }()

	waitFor(t, "jobs populated", func() bool { return string(b.Snapshot().Jobs) != `{}` })

	count, err := testutil.GatherAndCount(reg, "landingboard_polls_total", "landingboard_token_fetches_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if count == 0 {
		t.Error("expected poll and token metrics to be recorded")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", b.Addr()))
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /metrics status = %d, want 200", resp.StatusCode)
	}
}

func TestBoard_Healthz(t *testing.T) {
	fp := newFakePlatform(t)
	fp.Close() // upstream down: liveness must not depend on it

	b := newTestBoard(t, fp, "correct")
	stop := startBoard(t, b)
	defer func() { _ = stop() }()

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", b.Addr()))
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("GET /healthz = %d %q, want 200 OK", resp.StatusCode, body)
	}
}

func TestStart_ReturnsImmediatelyIfContextAlreadyCancelled(t *testing.T) {
	fp := newFakePlatform(t)
	b := newTestBoard(t, fp, "correct")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- b.Start(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return with already-cancelled context")
	}
}

func TestStart_OnlyOnce(t *testing.T) {
	fp := newFakePlatform(t)
	b := newTestBoard(t, fp, "correct")
	stop := startBoard(t, b)
	defer func() { _ = stop() }()

	err := b.Start(context.Background())
	if err == nil {
		t.Fatal("second Start() expected error")
	}
	if !errors.Is(err, store.ErrWriterClaimed) {
		t.Errorf("error = %v, want writer-claimed error", err)
	}
}

func TestStart_PortInUse(t *testing.T) {
	fp := newFakePlatform(t)
	first := newTestBoard(t, fp, "correct")
	stop := startBoard(t, first)
	defer func() { _ = stop() }()

	second := newTestBoard(t, fp, "correct", WithAddr(first.Addr().String()))
	if err := second.Start(context.Background()); err == nil {
		t.Error("Start() on a bound address should fail")
	}
}
