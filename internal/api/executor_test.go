package api

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aredoff/farmbot/internal/clock"
	"github.com/aredoff/farmbot/internal/metrics"
	"github.com/aredoff/farmbot/internal/proxy"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Token = "test-token"
	cfg.Timeout = 200 * time.Millisecond
	cfg.TransportBackoffMin = time.Millisecond
	cfg.TransportBackoffMax = 2 * time.Millisecond
	cfg.MaxAttempts = 3
	return cfg
}

func newTestExecutor(cfg Config, sel ProxySelector) (*Executor, *clock.Fake) {
	sleeper := &clock.Fake{}
	return NewExecutor(cfg, sel, sleeper, clock.NewRand(1), nil), sleeper
}

type countingSelector struct {
	calls int32
	ep    *proxy.Endpoint
}

func (s *countingSelector) Select(context.Context) *proxy.Endpoint {
	atomic.AddInt32(&s.calls, 1)
	return s.ep
}

func TestExecuteSuccess(t *testing.T) {
	var hdr http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr = r.Header.Clone()
		if r.URL.Path != PathBalance {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `{"balance": 42}`)
	}))
	defer srv.Close()

	e, sleeper := newTestExecutor(testConfig(srv.URL), nil)
	out := e.Balance(context.Background())

	if !out.OK() {
		t.Fatalf("Balance() err = %v", out.Err)
	}
	if got := out.Payload.Get("balance").Int(); got != 42 {
		t.Errorf("balance = %d, want 42", got)
	}
	if out.Attempts != 1 || out.Status != http.StatusOK {
		t.Errorf("Attempts = %d, Status = %d", out.Attempts, out.Status)
	}
	if len(sleeper.Waits()) != 0 {
		t.Errorf("success must not wait, got %v", sleeper.Waits())
	}

	if hdr.Get("Authorization") != "Bearer test-token" {
		t.Errorf("Authorization = %q", hdr.Get("Authorization"))
	}
	if hdr.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", hdr.Get("Content-Type"))
	}
	ua := hdr.Get("User-Agent")
	found := false
	for _, candidate := range DefaultUserAgents {
		if ua == candidate {
			found = true
		}
	}
	if !found {
		t.Errorf("User-Agent %q not from the identity pool", ua)
	}
}

func TestExecuteRateLimited(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.TransportRetries = 2
	e, sleeper := newTestExecutor(cfg, nil)

	out := e.FarmStatus(context.Background())

	if out.OK() || out.Kind() != KindRateLimited {
		t.Fatalf("Kind() = %v, want rate_limited", out.Kind())
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Errorf("server hits = %d, want 3 (1 + 2 transport retries)", n)
	}
	if sleeper.Total() < 120*time.Second {
		t.Errorf("waits = %v, want at least 120s", sleeper.Waits())
	}
	if out.Attempts != 1 {
		t.Errorf("rate limiting must not retry the whole call, Attempts = %d", out.Attempts)
	}
}

func TestExecuteServerErrorExhaustsTransportRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "upstream exploded")
	}))
	defer srv.Close()

	var logs bytes.Buffer
	cfg := testConfig(srv.URL)
	cfg.Logger = zerolog.New(&logs)
	m := metrics.New("test")
	e := NewExecutor(cfg, nil, &clock.Fake{}, clock.NewRand(1), m)

	out := e.StartFarming(context.Background())

	if out.OK() || out.Kind() != KindHTTP || out.Status != http.StatusInternalServerError {
		t.Fatalf("out = %+v", out)
	}
	if n := atomic.LoadInt32(&hits); n != int32(cfg.TransportRetries+1) {
		t.Errorf("server hits = %d, want %d", n, cfg.TransportRetries+1)
	}
	if !strings.Contains(logs.String(), "upstream exploded") {
		t.Errorf("error body not logged:\n%s", logs.String())
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues(PathFarmStart, "http_error")); got != 1 {
		t.Errorf("requests{start,http_error} = %v, want 1", got)
	}
}

func TestExecuteRecoversWithinTransportRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"active": true}`)
	}))
	defer srv.Close()

	e, sleeper := newTestExecutor(testConfig(srv.URL), nil)
	out := e.FarmStatus(context.Background())

	if !out.OK() || !out.Payload.Get("active").Bool() {
		t.Fatalf("out = %+v", out)
	}
	if len(sleeper.Waits()) != 0 {
		t.Errorf("transport retries must not use the caller-visible waits: %v", sleeper.Waits())
	}
}

func blockingServer(hits *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
}

func TestExecuteTimeoutRetriesWithBackoff(t *testing.T) {
	var hits int32
	srv := blockingServer(&hits)
	defer srv.Close()

	sel := &countingSelector{}
	e, sleeper := newTestExecutor(testConfig(srv.URL), sel)
	out := e.Execute(context.Background(), http.MethodGet, PathFarmStatus)

	if out.Kind() != KindTimeout {
		t.Fatalf("Kind() = %v, want timeout (err %v)", out.Kind(), out.Err)
	}
	if out.Attempts != 3 || atomic.LoadInt32(&hits) != 3 {
		t.Errorf("Attempts = %d, hits = %d; want 3 each", out.Attempts, atomic.LoadInt32(&hits))
	}
	waits := sleeper.Waits()
	if len(waits) != 2 {
		t.Fatalf("waits = %v, want two 30s waits", waits)
	}
	for _, w := range waits {
		if w < 30*time.Second {
			t.Errorf("timeout wait %v, want >= 30s", w)
		}
	}
	if n := atomic.LoadInt32(&sel.calls); n != 3 {
		t.Errorf("proxy selected %d times, want once per attempt", n)
	}
}

func TestExecuteTimeoutThenSuccess(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			<-r.Context().Done()
			return
		}
		io.WriteString(w, `{"ok": true}`)
	}))
	defer srv.Close()

	e, sleeper := newTestExecutor(testConfig(srv.URL), nil)
	out := e.Execute(context.Background(), http.MethodPost, PathFarmStart)

	if !out.OK() || out.Attempts != 2 {
		t.Fatalf("out = %+v", out)
	}
	if waits := sleeper.Waits(); len(waits) != 1 || waits[0] != 30*time.Second {
		t.Errorf("waits = %v, want [30s]", waits)
	}
}

func TestExecuteConnectionErrorBackoff(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := testConfig("http://" + addr)
	cfg.MaxAttempts = 2
	e, sleeper := newTestExecutor(cfg, nil)
	out := e.Profile(context.Background())

	if out.Kind() != KindConnection {
		t.Fatalf("Kind() = %v, want connection_error (err %v)", out.Kind(), out.Err)
	}
	if waits := sleeper.Waits(); len(waits) != 1 || waits[0] != 60*time.Second {
		t.Errorf("waits = %v, want [1m0s]", waits)
	}
}

func TestExecuteUnboundedRetriesStopOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig("http://" + addr)
	cfg.MaxAttempts = 0
	sleeper := &clock.Fake{}
	sleeper.OnWait = func(time.Duration) {
		if len(sleeper.Waits()) == 5 {
			cancel()
		}
	}
	e := NewExecutor(cfg, nil, sleeper, clock.NewRand(1), nil)
	out := e.Balance(ctx)

	if out.Kind() != KindCancelled {
		t.Fatalf("Kind() = %v, want cancelled", out.Kind())
	}
	if len(sleeper.Waits()) != 5 {
		t.Errorf("waits = %d, want 5 before cancellation", len(sleeper.Waits()))
	}
}

func TestExecuteNoResultCases(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		status   int
		body     string
		wantKind Kind
		wantHits int32
	}{
		{"malformed json", http.MethodGet, http.StatusOK, "<html>oops</html>", KindMalformed, 1},
		{"not found", http.MethodGet, http.StatusNotFound, `{"error":"nope"}`, KindHTTP, 1},
		{"unauthorized", http.MethodPost, http.StatusUnauthorized, "", KindHTTP, 1},
		{"invalid method", http.MethodDelete, http.StatusOK, "{}", KindInvalid, 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(test.status)
				io.WriteString(w, test.body)
			}))
			defer srv.Close()

			e, sleeper := newTestExecutor(testConfig(srv.URL), nil)
			out := e.Execute(context.Background(), test.method, PathProfile)

			if out.OK() || out.Payload != nil {
				t.Fatalf("expected no result, got %+v", out)
			}
			if out.Kind() != test.wantKind {
				t.Errorf("Kind() = %v, want %v", out.Kind(), test.wantKind)
			}
			if n := atomic.LoadInt32(&hits); n != test.wantHits {
				t.Errorf("hits = %d, want %d", n, test.wantHits)
			}
			if len(sleeper.Waits()) != 0 {
				t.Errorf("waits = %v, want none", sleeper.Waits())
			}
		})
	}
}

func TestExecuteViaProxy(t *testing.T) {
	var seen string
	proxySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.String()
		io.WriteString(w, `{"name":"farmer"}`)
	}))
	defer proxySrv.Close()

	ep, err := proxy.Parse(proxySrv.URL, "", proxy.Primary)
	if err != nil {
		t.Fatal(err)
	}

	e, _ := newTestExecutor(testConfig("http://api.farm.test"), nil)
	out := e.ExecuteVia(context.Background(), http.MethodGet, PathProfile, ep)

	if !out.OK() {
		t.Fatalf("ExecuteVia() err = %v", out.Err)
	}
	if seen != "http://api.farm.test/user/profile" {
		t.Errorf("proxy saw %q", seen)
	}
	if out.Proxy != ep {
		t.Error("Outcome.Proxy should be the endpoint used")
	}
}

func TestUserAgentRotation(t *testing.T) {
	seen := map[string]bool{}
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.Header.Get("User-Agent")] = true
		mu.Unlock()
		io.WriteString(w, "{}")
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.UserAgents = []string{"agent-a", "agent-b"}
	e, _ := newTestExecutor(cfg, nil)
	for i := 0; i < 30; i++ {
		e.Balance(context.Background())
	}

	if len(seen) != 2 || !seen["agent-a"] || !seen["agent-b"] {
		t.Errorf("identities seen = %v, want both agents", seen)
	}
}

func TestExecuteIsSequential(t *testing.T) {
	var inFlight, maxInFlight int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		io.WriteString(w, "{}")
	}))
	defer srv.Close()

	e, _ := newTestExecutor(testConfig(srv.URL), nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.FarmStatus(context.Background())
		}()
	}
	wg.Wait()

	if m := atomic.LoadInt32(&maxInFlight); m != 1 {
		t.Errorf("max concurrent requests = %d, want 1", m)
	}
}

func TestExecuteMinInterval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "{}")
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MinInterval = 50 * time.Millisecond
	e, _ := newTestExecutor(cfg, nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if out := e.Balance(context.Background()); !out.OK() {
			t.Fatalf("call %d failed: %v", i, out.Err)
		}
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("3 spaced calls took %v, want >= 100ms", elapsed)
	}
}

func TestRequestError(t *testing.T) {
	err := &RequestError{Kind: KindHTTP, Method: "POST", Path: PathFarmStart, Status: 503}
	if got := err.Error(); got != "POST /farm/start: http_error (status 503)" {
		t.Errorf("Error() = %q", got)
	}
	if KindOf(nil) != KindNone {
		t.Error("KindOf(nil) should be KindNone")
	}
	if KindOf(io.EOF) != KindConnection {
		t.Error("unclassified errors count as connection errors")
	}
}
