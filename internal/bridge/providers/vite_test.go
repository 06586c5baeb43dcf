package providers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/devrelay/cli/internal/bridge"
	"github.com/devrelay/cli/internal/config"
)

func writeProjectFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestViteArgsUseNegotiatedPort(t *testing.T) {
	srv := NewViteDevServer(&config.ServerConfig{}, t.TempDir(), 5199, 0)

	args := srv.Argv
	if len(args) < 2 || args[0] != "npx" || args[1] != "vite" {
		t.Fatalf("Argv = %v, want npx vite invocation", args)
	}
	for _, want := range []string{"--port", "5199", "--strictPort", "--host", "127.0.0.1"} {
		if !containsString(args, want) {
			t.Errorf("Argv %v missing %q", args, want)
		}
	}
	if containsString(args, "--debug") {
		t.Errorf("Argv %v should not contain --debug by default", args)
	}
}

func TestViteArgsDebugMode(t *testing.T) {
	srv := NewViteDevServer(&config.ServerConfig{}, t.TempDir(), 5199, 0)

	srv.SetDebugMode(true)
	if !containsString(srv.Argv, "--debug") {
		t.Errorf("Argv %v missing --debug after SetDebugMode(true)", srv.Argv)
	}

	srv.SetDebugMode(false)
	if containsString(srv.Argv, "--debug") {
		t.Errorf("Argv %v still contains --debug after SetDebugMode(false)", srv.Argv)
	}
}

func TestViteCommandOverride(t *testing.T) {
	srv := NewViteDevServer(&config.ServerConfig{Command: "pnpm dev"}, t.TempDir(), 5199, 0)

	want := []string{"pnpm", "dev"}
	if len(srv.Argv) != 2 || srv.Argv[0] != want[0] || srv.Argv[1] != want[1] {
		t.Fatalf("Argv = %v, want %v", srv.Argv, want)
	}

	// Debug mode must not clobber a hand-picked command
	srv.SetDebugMode(true)
	if containsString(srv.Argv, "--debug") {
		t.Errorf("Argv = %v, debug flag injected into overridden command", srv.Argv)
	}
}

func TestViteEnvironment(t *testing.T) {
	srv := NewViteDevServer(&config.ServerConfig{
		Env: map[string]string{"VITE_API_BASE": "/api"},
	}, t.TempDir(), 5199, 24678)

	env := srv.environment()
	for _, entry := range []string{
		"BROWSER=none",
		"DEVRELAY_PORT=5199",
		"DEVRELAY_HMR_PORT=24678",
		"VITE_API_BASE=/api",
	} {
		if !containsEnvEntry(env, entry) {
			t.Errorf("environment missing %q", entry)
		}
	}
}

func TestViteProviderDetect(t *testing.T) {
	provider := &ViteProvider{}

	t.Run("dependency", func(t *testing.T) {
		dir := t.TempDir()
		writeProjectFile(t, dir, "package.json", `{"devDependencies": {"vite": "^5.0.0"}}`)

		result, err := provider.Detect(dir)
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if result == nil {
			t.Fatal("Detect = nil, want a match")
		}
		if result.Confidence != 0.9 {
			t.Errorf("Confidence = %v, want 0.9", result.Confidence)
		}
		if !containsString(result.Indicators, "vite in package.json") {
			t.Errorf("Indicators = %v, missing dependency marker", result.Indicators)
		}
	})

	t.Run("config file only", func(t *testing.T) {
		dir := t.TempDir()
		writeProjectFile(t, dir, "vite.config.ts", "export default {}\n")

		result, err := provider.Detect(dir)
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if result == nil || result.Confidence != 0.8 {
			t.Fatalf("Detect = %+v, want confidence 0.8", result)
		}
		if !containsString(result.Indicators, "vite.config.ts") {
			t.Errorf("Indicators = %v, missing config marker", result.Indicators)
		}
	})

	t.Run("script only", func(t *testing.T) {
		dir := t.TempDir()
		writeProjectFile(t, dir, "package.json", `{"scripts": {"dev": "vite --open"}}`)

		result, err := provider.Detect(dir)
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if result == nil || result.Confidence != 0.7 {
			t.Fatalf("Detect = %+v, want confidence 0.7", result)
		}
	})

	t.Run("vitest is not vite", func(t *testing.T) {
		dir := t.TempDir()
		writeProjectFile(t, dir, "package.json",
			`{"devDependencies": {"vitest": "^1.0.0"}, "scripts": {"test": "vitest run"}}`)

		result, err := provider.Detect(dir)
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if result != nil {
			t.Fatalf("Detect = %+v, want nil for a vitest-only project", result)
		}
	})

	t.Run("empty directory", func(t *testing.T) {
		result, err := provider.Detect(t.TempDir())
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if result != nil {
			t.Fatalf("Detect = %+v, want nil", result)
		}
	})

	t.Run("config file and dependency", func(t *testing.T) {
		dir := t.TempDir()
		writeProjectFile(t, dir, "vite.config.js", "export default {}\n")
		writeProjectFile(t, dir, "package.json", `{"dependencies": {"vite": "^5.0.0"}}`)

		result, err := provider.Detect(dir)
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if result == nil || result.Confidence != 0.9 {
			t.Fatalf("Detect = %+v, want confidence 0.9", result)
		}
		if len(result.Indicators) != 2 {
			t.Errorf("Indicators = %v, want both markers", result.Indicators)
		}
	})
}

func TestViteProviderDefaultConfig(t *testing.T) {
	cfg := (&ViteProvider{}).DefaultConfig()
	if cfg.Family != "vite" {
		t.Errorf("Family = %q, want %q", cfg.Family, "vite")
	}
	if cfg.Port != 5173 {
		t.Errorf("Port = %d, want 5173", cfg.Port)
	}
}

func TestBuiltinProvidersRegistered(t *testing.T) {
	for _, name := range []string{"vite", "command"} {
		if _, err := bridge.DefaultRegistry().Get(name); err != nil {
			t.Errorf("provider %q not registered: %v", name, err)
		}
	}
}
