// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package httpcore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/datalith/apierr"
	"github.com/tomtom215/datalith/events"
	"github.com/tomtom215/datalith/options"
)

// mockTransport lets tests script responses per call.
type mockTransport struct {
	fetchFunc func(ctx context.Context, req *FetchRequest) (*FetchResponse, error)
	calls     int
	closed    int
}

func (m *mockTransport) Fetch(ctx context.Context, req *FetchRequest) (*FetchResponse, error) {
	m.calls++
	return m.fetchFunc(ctx, req)
}

func (m *mockTransport) Close() error {
	m.closed++
	return nil
}

func jsonResponse(status int, body string) *FetchResponse {
	return &FetchResponse{
		Status:     status,
		StatusText: http.StatusText(status),
		Body:       []byte(body),
		Headers:    map[string]string{},
	}
}

func newTestExecutor(t *testing.T, transport FetchTransport, emitter *events.Emitter) *Executor {
	t.Helper()
	return NewExecutor(ExecutorConfig{
		Transport: transport,
		Emitter:   emitter,
		BaseURL:   "https://db.example.com/api/json/v1",
		Token:     options.StaticTokenProvider("tok"),
	})
}

func generalTM() *TimeoutManager {
	return NewMultiPhase(apierr.TimeoutGeneral, 30*time.Second, 10*time.Second)
}

func TestTimeoutManagerMonotonic(t *testing.T) {
	tm := NewMultiPhase(apierr.TimeoutGeneral, time.Second, 100*time.Millisecond)
	prev := time.Duration(1 << 62)
	for i := 0; i < 3; i++ {
		remaining, mk, err := tm.Advance()
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if remaining > 100*time.Millisecond {
			t.Errorf("per-request cap not applied: %s", remaining)
		}
		if remaining > prev {
			t.Errorf("remaining grew: %s > %s", remaining, prev)
		}
		prev = remaining
		if mk == nil {
			t.Fatal("nil timeout constructor")
		}
	}
}

func TestTimeoutManagerSpentBudget(t *testing.T) {
	tm := NewSinglePhase(apierr.TimeoutProvisioning, time.Nanosecond)
	time.Sleep(time.Millisecond)
	_, _, err := tm.Advance()
	var te *apierr.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if te.Category != apierr.TimeoutProvisioning {
		t.Errorf("category = %q", te.Category)
	}
}

func TestExecuteSuccessAndEventOrder(t *testing.T) {
	transport := &mockTransport{fetchFunc: func(_ context.Context, req *FetchRequest) (*FetchResponse, error) {
		if req.Method != "POST" {
			t.Errorf("method = %s", req.Method)
		}
		if req.Headers["Token"] != "tok" {
			t.Errorf("token header = %q", req.Headers["Token"])
		}
		return jsonResponse(200, `{"status":{"warnings":["deprecated sort"]},"data":{"documents":[]}}`), nil
	}}

	emitter := events.NewEmitter(nil)
	var names []events.Name
	var ids []string
	for _, name := range events.AllNames() {
		name := name
		emitter.On(name, func(e *events.Event) {
			names = append(names, e.Name)
			ids = append(ids, e.RequestID)
		})
	}

	exec := newTestExecutor(t, transport, emitter)
	resp, err := exec.Execute(context.Background(), &ExecuteOptions{
		Keyspace: "ks", Source: "coll", Command: "find",
		Args: map[string]any{"filter": map[string]any{}}, Idempotent: true,
		Timeout: generalTM(),
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if resp.Data == nil {
		t.Error("data envelope missing")
	}

	want := []events.Name{events.CommandStarted, events.CommandWarnings, events.CommandSucceeded}
	if len(names) != len(want) {
		t.Fatalf("events = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, names[i], want[i])
		}
	}
	if ids[0] == "" || ids[0] != ids[1] || ids[1] != ids[2] {
		t.Errorf("request ids should match and be non-empty: %v", ids)
	}
}

func TestExecuteSkipsRequestIDWithoutListeners(t *testing.T) {
	transport := &mockTransport{fetchFunc: func(context.Context, *FetchRequest) (*FetchResponse, error) {
		return jsonResponse(200, `{"status":{"ok":1}}`), nil
	}}
	exec := newTestExecutor(t, transport, events.NewEmitter(nil))
	if _, err := exec.Execute(context.Background(), &ExecuteOptions{Command: "ping", Timeout: generalTM()}); err != nil {
		t.Fatalf("execute: %v", err)
	}
}

func TestExecuteAuthSentinelIn2xx(t *testing.T) {
	transport := &mockTransport{fetchFunc: func(context.Context, *FetchRequest) (*FetchResponse, error) {
		return jsonResponse(200, `{"errors":[{"message":"UNAUTHENTICATED: Invalid token"}]}`), nil
	}}
	exec := newTestExecutor(t, transport, nil)
	_, err := exec.Execute(context.Background(), &ExecuteOptions{Command: "find", Timeout: generalTM()})
	var ae *apierr.AuthenticationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
}

func TestExecute401(t *testing.T) {
	transport := &mockTransport{fetchFunc: func(context.Context, *FetchRequest) (*FetchResponse, error) {
		return jsonResponse(401, `nope`), nil
	}}
	exec := newTestExecutor(t, transport, nil)
	_, err := exec.Execute(context.Background(), &ExecuteOptions{Command: "find", Timeout: generalTM()})
	var ae *apierr.AuthenticationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if ae.Status != 401 {
		t.Errorf("status = %d", ae.Status)
	}
}

func TestExecuteCollectionNotFound(t *testing.T) {
	transport := &mockTransport{fetchFunc: func(context.Context, *FetchRequest) (*FetchResponse, error) {
		return jsonResponse(200, `{"errors":[{"errorCode":"COLLECTION_NOT_EXIST","message":"no such collection"}]}`), nil
	}}
	exec := newTestExecutor(t, transport, nil)
	_, err := exec.Execute(context.Background(), &ExecuteOptions{
		Keyspace: "ks", Source: "missing", Command: "find", Timeout: generalTM(),
	})
	var cnf *apierr.CollectionNotFoundError
	if !errors.As(err, &cnf) {
		t.Fatalf("expected CollectionNotFoundError, got %v", err)
	}
	if cnf.Keyspace != "ks" || cnf.Collection != "missing" {
		t.Errorf("names = %s.%s", cnf.Keyspace, cnf.Collection)
	}
	var re *apierr.ResponseError
	if !errors.As(err, &re) {
		t.Error("CollectionNotFoundError should unwrap to ResponseError")
	}
}

func TestExecuteRetriesIdempotentOnly(t *testing.T) {
	t.Run("idempotent retries transient 503", func(t *testing.T) {
		calls := 0
		transport := &mockTransport{fetchFunc: func(context.Context, *FetchRequest) (*FetchResponse, error) {
			calls++
			if calls == 1 {
				return jsonResponse(503, `overloaded`), nil
			}
			return jsonResponse(200, `{"data":{"document":{"x":1}}}`), nil
		}}
		exec := newTestExecutor(t, transport, nil)
		_, err := exec.Execute(context.Background(), &ExecuteOptions{
			Command: "findOne", Idempotent: true, Timeout: generalTM(),
		})
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if calls != 2 {
			t.Errorf("calls = %d, want 2", calls)
		}
	})

	t.Run("non-idempotent never retries", func(t *testing.T) {
		calls := 0
		transport := &mockTransport{fetchFunc: func(context.Context, *FetchRequest) (*FetchResponse, error) {
			calls++
			return jsonResponse(503, `overloaded`), nil
		}}
		exec := newTestExecutor(t, transport, nil)
		_, err := exec.Execute(context.Background(), &ExecuteOptions{
			Command: "insertOne", Timeout: generalTM(),
		})
		var he *apierr.HTTPError
		if !errors.As(err, &he) {
			t.Fatalf("expected HTTPError, got %v", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("response errors are terminal even when idempotent", func(t *testing.T) {
		calls := 0
		transport := &mockTransport{fetchFunc: func(context.Context, *FetchRequest) (*FetchResponse, error) {
			calls++
			return jsonResponse(200, `{"errors":[{"errorCode":"INVALID_QUERY","message":"bad filter"}]}`), nil
		}}
		exec := newTestExecutor(t, transport, nil)
		_, err := exec.Execute(context.Background(), &ExecuteOptions{
			Command: "find", Idempotent: true, Timeout: generalTM(),
		})
		var re *apierr.ResponseError
		if !errors.As(err, &re) {
			t.Fatalf("expected ResponseError, got %v", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}

func TestExecuteForwardsTransportExtraLogInfo(t *testing.T) {
	transport := &mockTransport{fetchFunc: func(context.Context, *FetchRequest) (*FetchResponse, error) {
		resp := jsonResponse(200, `{"status":{"ok":1,"warnings":["deprecated sort"]}}`)
		resp.ExtraLogInfo = map[string]string{"proxy": "edge-3"}
		return resp, nil
	}}

	emitter := events.NewEmitter(nil)
	infoByEvent := map[events.Name]map[string]string{}
	for _, name := range events.AllNames() {
		name := name
		emitter.On(name, func(e *events.Event) {
			infoByEvent[name] = e.ExtraLogInfo
		})
	}

	exec := newTestExecutor(t, transport, emitter)
	resp, err := exec.Execute(context.Background(), &ExecuteOptions{Command: "find", Timeout: generalTM()})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if resp.ExtraLogInfo["proxy"] != "edge-3" {
		t.Errorf("response extra info = %v", resp.ExtraLogInfo)
	}
	if infoByEvent[events.CommandSucceeded]["proxy"] != "edge-3" {
		t.Errorf("succeeded event extra info = %v", infoByEvent[events.CommandSucceeded])
	}
	if infoByEvent[events.CommandWarnings]["proxy"] != "edge-3" {
		t.Errorf("warnings event extra info = %v", infoByEvent[events.CommandWarnings])
	}
}

func TestExecuteRejectsClosedClient(t *testing.T) {
	closed := &atomic.Bool{}
	closed.Store(true)
	exec := NewExecutor(ExecutorConfig{
		Transport: &mockTransport{},
		BaseURL:   "https://db.example.com",
		Closed:    closed,
	})
	_, err := exec.Execute(context.Background(), &ExecuteOptions{Command: "find", Timeout: generalTM()})
	var cc *apierr.ClientClosedError
	if !errors.As(err, &cc) {
		t.Fatalf("expected ClientClosedError, got %v", err)
	}
}

func TestPartialResultSurfacesInsertedIDs(t *testing.T) {
	transport := &mockTransport{fetchFunc: func(context.Context, *FetchRequest) (*FetchResponse, error) {
		return jsonResponse(200, `{"status":{"insertedIds":["a","b"]},"errors":[{"errorCode":"DOCUMENT_ALREADY_EXISTS","message":"dup"}]}`), nil
	}}
	exec := newTestExecutor(t, transport, nil)
	_, err := exec.Execute(context.Background(), &ExecuteOptions{Command: "insertMany", Timeout: generalTM()})
	var re *apierr.ResponseError
	if !errors.As(err, &re) {
		t.Fatalf("expected ResponseError, got %v", err)
	}
	partial, ok := re.PartialResult.(map[string]any)
	if !ok || partial["insertedIds"] == nil {
		t.Errorf("partial result = %v", re.PartialResult)
	}
}

func TestHTTPTransportBasics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Probe") != "1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("X-Answer", "42")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer srv.Close()

	tr := NewHTTPTransport()
	defer tr.Close()

	resp, err := tr.Fetch(context.Background(), &FetchRequest{
		URL:     srv.URL,
		Method:  "GET",
		Headers: map[string]string{"X-Probe": "1"},
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if resp.Status != http.StatusTeapot {
		t.Errorf("status = %d; non-2xx must not error at the transport", resp.Status)
	}
	if string(resp.Body) != "short and stout" {
		t.Errorf("body = %q", resp.Body)
	}
	if resp.Headers["X-Answer"] != "42" {
		t.Errorf("headers = %v", resp.Headers)
	}
	if resp.HTTPVersion != 1 {
		t.Errorf("http version = %d", resp.HTTPVersion)
	}
}

func TestHTTPTransportTimeoutUsesMkTimeoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	tr := NewHTTPTransport()
	defer tr.Close()

	sentinel := errors.New("budget gone")
	_, err := tr.Fetch(context.Background(), &FetchRequest{
		URL:            srv.URL,
		Method:         "GET",
		Timeout:        20 * time.Millisecond,
		MkTimeoutError: func() error { return sentinel },
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected the constructed timeout error, got %v", err)
	}
}

func TestHTTPTransportCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	tr := NewHTTPTransport()
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := tr.Fetch(ctx, &FetchRequest{URL: srv.URL, Method: "GET"})
	var ce *apierr.CancelledError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CancelledError, got %v", err)
	}
}

func TestDevOpsLongRunningPollsToTarget(t *testing.T) {
	var statusCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /databases", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/v2/databases/db-123")
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /databases/db-123", func(w http.ResponseWriter, r *http.Request) {
		status := "INITIALIZING"
		if statusCalls.Add(1) >= 3 {
			status = "ACTIVE"
		}
		_, _ = w.Write([]byte(`{"id":"db-123","status":"` + status + `"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	emitter := events.NewEmitter(nil)
	var polls []int
	emitter.On(events.AdminCommandPolling, func(e *events.Event) {
		polls = append(polls, e.PollIteration)
	})

	tr := NewHTTPTransport()
	defer tr.Close()
	client := NewDevOpsClient(DevOpsConfig{
		Transport: tr,
		Emitter:   emitter,
		BaseURL:   srv.URL,
		Token:     options.StaticTokenProvider("astra-token"),
	})

	tm := NewMultiPhase(apierr.TimeoutProvisioning, 30*time.Second, 5*time.Second)
	resp, id, err := client.RequestLongRunning(context.Background(),
		&DevOpsRequest{Method: "POST", Path: "/databases", Body: map[string]any{"name": "db"}},
		&LongRunningInfo{
			Resource:     "database",
			Blocking:     true,
			PollInterval: 10 * time.Millisecond,
			StatusPath:   func(id string) string { return "/databases/" + id },
			Target:       "ACTIVE",
			LegalStates:  []string{"INITIALIZING", "PENDING"},
		}, tm)
	if err != nil {
		t.Fatalf("long running: %v", err)
	}
	if id != "db-123" {
		t.Errorf("id = %q", id)
	}
	if resp == nil || statusCalls.Load() < 3 {
		t.Errorf("expected at least 3 status polls, got %d", statusCalls.Load())
	}
	if len(polls) < 3 || polls[0] != 1 || polls[1] != 2 {
		t.Errorf("poll iterations = %v", polls)
	}
}

func TestDevOpsLongRunningNonBlocking(t *testing.T) {
	statusCalled := false
	mux := http.NewServeMux()
	mux.HandleFunc("POST /databases", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/v2/databases/db-9")
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /databases/db-9", func(w http.ResponseWriter, r *http.Request) {
		statusCalled = true
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tr := NewHTTPTransport()
	defer tr.Close()
	client := NewDevOpsClient(DevOpsConfig{Transport: tr, BaseURL: srv.URL})

	tm := NewMultiPhase(apierr.TimeoutProvisioning, 10*time.Second, 5*time.Second)
	_, id, err := client.RequestLongRunning(context.Background(),
		&DevOpsRequest{Method: "POST", Path: "/databases"},
		&LongRunningInfo{Resource: "database", Blocking: false, Target: "ACTIVE"}, tm)
	if err != nil {
		t.Fatalf("long running: %v", err)
	}
	if id != "db-9" {
		t.Errorf("id = %q", id)
	}
	if statusCalled {
		t.Error("non-blocking call must not poll")
	}
}

func TestDevOpsLongRunningMissingLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr := NewHTTPTransport()
	defer tr.Close()
	client := NewDevOpsClient(DevOpsConfig{Transport: tr, BaseURL: srv.URL})

	tm := NewSinglePhase(apierr.TimeoutProvisioning, 10*time.Second)
	_, _, err := client.RequestLongRunning(context.Background(),
		&DevOpsRequest{Method: "POST", Path: "/databases"},
		&LongRunningInfo{Resource: "database", Blocking: true, Target: "ACTIVE"}, tm)
	var he *apierr.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected HTTPError for missing Location, got %v", err)
	}
}

func TestDevOpsLongRunningIllegalStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /databases", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/v2/databases/db-5")
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /databases/db-5", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"TERMINATED"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tr := NewHTTPTransport()
	defer tr.Close()
	client := NewDevOpsClient(DevOpsConfig{Transport: tr, BaseURL: srv.URL})

	tm := NewMultiPhase(apierr.TimeoutProvisioning, 10*time.Second, 5*time.Second)
	_, _, err := client.RequestLongRunning(context.Background(),
		&DevOpsRequest{Method: "POST", Path: "/databases"},
		&LongRunningInfo{
			Resource: "database", Blocking: true, PollInterval: 5 * time.Millisecond,
			StatusPath:  func(id string) string { return "/databases/" + id },
			Target:      "ACTIVE",
			LegalStates: []string{"INITIALIZING"},
		}, tm)
	var ona *apierr.OperationNotAllowedError
	if !errors.As(err, &ona) {
		t.Fatalf("expected OperationNotAllowedError, got %v", err)
	}
	if ona.Status != "TERMINATED" {
		t.Errorf("status = %q", ona.Status)
	}
}

func TestDevOpsRequestForcesHTTP1(t *testing.T) {
	transport := &mockTransport{fetchFunc: func(_ context.Context, req *FetchRequest) (*FetchResponse, error) {
		if !req.ForceHTTP1 {
			t.Error("DevOps requests must set ForceHTTP1")
		}
		if req.Headers["Authorization"] != "Bearer astra-token" {
			t.Errorf("authorization = %q", req.Headers["Authorization"])
		}
		return jsonResponse(200, `{"ok":true}`), nil
	}}
	client := NewDevOpsClient(DevOpsConfig{
		Transport: transport,
		BaseURL:   "https://api.astra.example.com/v2",
		Token:     options.StaticTokenProvider("astra-token"),
	})
	tm := NewSinglePhase(apierr.TimeoutAdmin, 10*time.Second)
	if _, err := client.Request(context.Background(), &DevOpsRequest{Method: "GET", Path: "/databases"}, tm); err != nil {
		t.Fatalf("request: %v", err)
	}
	if transport.calls != 1 {
		t.Errorf("calls = %d", transport.calls)
	}
}
