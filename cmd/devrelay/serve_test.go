// Package main provides tests for the serve command wiring.
package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/devrelay/cli/internal/bridge"
	"github.com/devrelay/cli/internal/bridge/providers"
	"github.com/devrelay/cli/internal/config"
)

// newServeFixture builds a project with a src/ directory and the
// assembled browser-facing handler. The manager has not started
// anything, matching the window before the dev server is up.
func newServeFixture(t *testing.T) (*projectContext, http.Handler) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"name": "shop", "devDependencies": {"vite": "^5.0.0"}}`)
	if err := os.MkdirAll(filepath.Join(root, "src"), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	proj, err := loadProject(root)
	if err != nil {
		t.Fatalf("loadProject: %v", err)
	}

	server := providers.NewViteDevServer(&config.ServerConfig{}, root, 5199, 0)
	manager := bridge.NewManager(server, bridge.Options{DiscoveryPath: proj.DiscoveryPath})

	handler, sessions, err := buildServeHandler("vite", proj, manager)
	if err != nil {
		t.Fatalf("buildServeHandler: %v", err)
	}
	if sessions == nil {
		t.Fatal("buildServeHandler returned a nil session registry")
	}
	return proj, handler
}

// countingUpstream is an upstream test server that records the paths it
// was asked for and answers with a fixed body.
func countingUpstream(t *testing.T, body string) (*httptest.Server, func() []string) {
	t.Helper()
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), paths...)
	}
}

// TestServeHandlerWithoutRecord verifies the 503 answer while no dev
// server is running.
func TestServeHandlerWithoutRecord(t *testing.T) {
	_, handler := newServeFixture(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/src/main.ts", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "devrelay serve") {
		t.Errorf("body %q does not point at 'devrelay serve'", rr.Body.String())
	}
}

// TestServeHandlerForwardsEverything verifies that without a backend
// the dev server owns the whole origin, including SPA fallback routes.
func TestServeHandlerForwardsEverything(t *testing.T) {
	proj, handler := newServeFixture(t)

	upstream, seenPaths := countingUpstream(t, "bundler")
	writeRecord(t, proj, upstream.URL, os.Getpid())

	for _, path := range []string{"/src/main.ts", "/@vite/client", "/products/42"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, want 200", path, rr.Code)
		}
		if rr.Body.String() != "bundler" {
			t.Errorf("GET %s body = %q, want bundler", path, rr.Body.String())
		}
	}

	if got := seenPaths(); len(got) != 3 {
		t.Errorf("upstream saw %d requests (%v), want 3", len(got), got)
	}
}

// TestServeHandlerSplitsWithBackend verifies that with --backend only
// bundler-owned paths reach the dev server.
func TestServeHandlerSplitsWithBackend(t *testing.T) {
	backend, _ := countingUpstream(t, "backend")

	oldBackend := serveBackend
	serveBackend = backend.URL
	defer func() { serveBackend = oldBackend }()

	proj, handler := newServeFixture(t)

	bundler, _ := countingUpstream(t, "bundler")
	writeRecord(t, proj, bundler.URL, os.Getpid())

	tests := []struct {
		path string
		want string
	}{
		{path: "/@vite/client", want: "bundler"},
		{path: "/src/App.tsx", want: "bundler"},
		{path: "/api/users", want: "backend"},
		{path: "/products/42", want: "backend"},
	}

	for _, tt := range tests {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, want 200", tt.path, rr.Code)
		}
		if rr.Body.String() != tt.want {
			t.Errorf("GET %s hit %q, want %q", tt.path, rr.Body.String(), tt.want)
		}
	}
}

// TestBuildServeHandlerRejectsBadBackend verifies --backend validation.
func TestBuildServeHandlerRejectsBadBackend(t *testing.T) {
	oldBackend := serveBackend
	serveBackend = "http://"
	defer func() { serveBackend = oldBackend }()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"name": "shop"}`)
	proj, err := loadProject(root)
	if err != nil {
		t.Fatalf("loadProject: %v", err)
	}

	server := providers.NewViteDevServer(&config.ServerConfig{}, root, 5199, 0)
	manager := bridge.NewManager(server, bridge.Options{DiscoveryPath: proj.DiscoveryPath})

	if _, _, err := buildServeHandler("vite", proj, manager); err == nil {
		t.Fatal("buildServeHandler accepted an invalid --backend address")
	}
}

// TestNegotiateServePorts verifies port reservation for both channel
// layouts.
func TestNegotiateServePorts(t *testing.T) {
	t.Run("shared channel", func(t *testing.T) {
		httpPort, hmrPort, err := negotiateServePorts(false, 0, 0)
		if err != nil {
			t.Fatalf("negotiateServePorts: %v", err)
		}
		if httpPort <= 0 {
			t.Errorf("httpPort = %d, want a reserved port", httpPort)
		}
		if hmrPort != 0 {
			t.Errorf("hmrPort = %d, want 0 for a shared channel", hmrPort)
		}
	})

	t.Run("separate HMR channel", func(t *testing.T) {
		httpPort, hmrPort, err := negotiateServePorts(true, 0, 0)
		if err != nil {
			t.Fatalf("negotiateServePorts: %v", err)
		}
		if httpPort <= 0 || hmrPort <= 0 {
			t.Errorf("ports = (%d, %d), want two reserved ports", httpPort, hmrPort)
		}
		if httpPort == hmrPort {
			t.Errorf("both channels got port %d", httpPort)
		}
	})
}
