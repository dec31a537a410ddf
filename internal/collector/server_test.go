package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/playwatch/playwatch/internal/wire"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenStore() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestServer(t *testing.T, secret string) (*httptest.Server, *Store) {
	t.Helper()
	store := newTestStore(t)
	mux := http.NewServeMux()
	NewServer(store, secret).SetupRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func postSubmission(t *testing.T, url string, sub wire.Submission, secret string) *http.Response {
	t.Helper()
	body, err := json.Marshal(sub)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url+"/submit", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(wire.SecretHeader, secret)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeStatus(t *testing.T, resp *http.Response) string {
	t.Helper()
	var sr wire.SubmissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return sr.Status
}

func TestSubmitCreated(t *testing.T) {
	srv, store := newTestServer(t, "")

	name := "Some Game"
	resp := postSubmission(t, srv.URL, wire.Submission{Duration: 45, Executable: "app.exe", Name: &name}, "")

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want 201", resp.StatusCode)
	}
	if got := decodeStatus(t, resp); got != wire.StatusOK {
		t.Errorf("response status = %q, want %q", got, wire.StatusOK)
	}

	processes, events, err := store.counts(context.Background())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if processes != 1 || events != 1 {
		t.Errorf("stored %d processes / %d events, want 1 / 1", processes, events)
	}
}

func TestSubmitDeduplicatesProcesses(t *testing.T) {
	srv, store := newTestServer(t, "")

	name := "Some Game"
	for i := 0; i < 3; i++ {
		resp := postSubmission(t, srv.URL, wire.Submission{Duration: 45, Executable: "app.exe", Name: &name}, "")
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("submission %d: status = %d, want 201", i, resp.StatusCode)
		}
	}
	// Nameless submissions for the same executable are a distinct identity.
	postSubmission(t, srv.URL, wire.Submission{Duration: 10, Executable: "app.exe"}, "")
	postSubmission(t, srv.URL, wire.Submission{Duration: 10, Executable: "app.exe"}, "")

	processes, events, err := store.counts(context.Background())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if processes != 2 {
		t.Errorf("stored %d processes, want 2 (named + nameless)", processes)
	}
	if events != 5 {
		t.Errorf("stored %d events, want 5", events)
	}
}

func TestSubmitCleansCorruptName(t *testing.T) {
	srv, store := newTestServer(t, "")

	corrupt := "Launcher\x00garbage after the terminator"
	clean := "Launcher"
	postSubmission(t, srv.URL, wire.Submission{Duration: 45, Executable: "launch.exe", Name: &corrupt}, "")
	postSubmission(t, srv.URL, wire.Submission{Duration: 46, Executable: "launch.exe", Name: &clean}, "")

	processes, events, err := store.counts(context.Background())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if processes != 1 {
		t.Errorf("stored %d processes, want 1 (corrupt name cleaned before dedup)", processes)
	}
	if events != 2 {
		t.Errorf("stored %d events, want 2", events)
	}
}

func TestSubmitUnauthenticated(t *testing.T) {
	srv, store := newTestServer(t, "hunter2")

	tests := []struct {
		name   string
		secret string
	}{
		{"missing_secret", ""},
		{"wrong_secret", "wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postSubmission(t, srv.URL, wire.Submission{Duration: 45, Executable: "app.exe"}, tt.secret)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
			if got := decodeStatus(t, resp); got != wire.StatusUnauthenticated {
				t.Errorf("response status = %q, want %q", got, wire.StatusUnauthenticated)
			}
		})
	}

	_, events, err := store.counts(context.Background())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if events != 0 {
		t.Errorf("stored %d events from unauthenticated submissions, want 0", events)
	}
}

func TestSubmitCorrectSecret(t *testing.T) {
	srv, _ := newTestServer(t, "hunter2")

	resp := postSubmission(t, srv.URL, wire.Submission{Duration: 45, Executable: "app.exe"}, "hunter2")
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want 201", resp.StatusCode)
	}
}

func TestSubmitRejectsNonPost(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/submit")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestSubmitRejectsInvalidBody(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp, err := http.Post(srv.URL+"/submit", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte("secret: hunter2\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Listen != "0.0.0.0:8080" {
		t.Errorf("Listen = %q, want default 0.0.0.0:8080", cfg.Listen)
	}
	if cfg.DBPath != "playwatch.db" {
		t.Errorf("DBPath = %q, want default playwatch.db", cfg.DBPath)
	}
	if cfg.Secret != "hunter2" {
		t.Errorf("Secret = %q, want hunter2", cfg.Secret)
	}
}
