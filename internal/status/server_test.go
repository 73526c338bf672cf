package status

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mbrock/tandem/internal/supervisor"
)

type fakeSource struct {
	snap supervisor.Snapshot
}

func (f *fakeSource) Snapshot() supervisor.Snapshot { return f.snap }

func testSnapshot() supervisor.Snapshot {
	exit := 1
	return supervisor.Snapshot{
		Port:      8080,
		Ready:     true,
		StartedAt: time.Now(),
		Primary: supervisor.ChildStatus{
			Role:    "web",
			Command: "gunicorn main:app",
			PID:     101,
			Running: true,
		},
		Secondary: supervisor.ChildStatus{
			Role:     "bot",
			Command:  "python bot_runner.py",
			PID:      102,
			Running:  false,
			ExitCode: &exit,
			Restarts: 2,
		},
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := New(&fakeSource{snap: testSnapshot()}, nil)
	ts := httptest.NewServer(srv.mux)
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp := get(t, ts.URL+"/healthz")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Status           string `json:"status"`
		Ready            bool   `json:"ready"`
		PrimaryRunning   bool   `json:"primary_running"`
		SecondaryRunning bool   `json:"secondary_running"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if body.Status != "ok" || !body.Ready {
		t.Errorf("body = %+v", body)
	}
	if !body.PrimaryRunning || body.SecondaryRunning {
		t.Errorf("running flags = %+v, want primary up, secondary down", body)
	}
}

func TestProcesses(t *testing.T) {
	ts := newTestServer(t)
	resp := get(t, ts.URL+"/processes")

	var snap supervisor.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if snap.Port != 8080 {
		t.Errorf("port = %d, want 8080", snap.Port)
	}
	if snap.Secondary.ExitCode == nil || *snap.Secondary.ExitCode != 1 {
		t.Errorf("secondary exit = %v, want 1", snap.Secondary.ExitCode)
	}
}

func TestIndexPage(t *testing.T) {
	ts := newTestServer(t)
	resp := get(t, ts.URL+"/")

	if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
		t.Errorf("content type = %q", got)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	body := string(raw)

	for _, want := range []string{"gunicorn main:app", "python bot_runner.py", "port 8080", "exited (1)"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestServeReturnsNilAfterShutdown(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	srv := New(&fakeSource{snap: testSnapshot()}, nil)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve after Shutdown = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestHistoryDisabled(t *testing.T) {
	ts := newTestServer(t)
	resp := get(t, ts.URL+"/history")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when history is disabled", resp.StatusCode)
	}
}
