// Package main provides the init command as a guided onboarding wizard.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/devrelay/cli/internal/bridge"
	"github.com/devrelay/cli/internal/bridge/providers"
	"github.com/devrelay/cli/internal/config"
	"github.com/devrelay/cli/internal/ui"
	"github.com/devrelay/cli/internal/util"
)

// initCmd initializes a devrelay project in the current directory via a guided wizard.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize devrelay project configuration",
	Long: `Initialize a devrelay project in the current directory via a guided wizard.

The wizard walks you through:
  1. Detect dev server — find which bundler family the project uses
  2. Write configuration — create .devrelay/config.yaml
  3. Package scripts — optionally add a dev:relay npm script

Use --non-interactive / -y to skip prompts and accept detection results.

Examples:
  devrelay init                 # Full guided wizard
  devrelay init -y              # Non-interactive: detect + write config
  devrelay init --force         # Overwrite existing configuration
  devrelay init --add-script    # Also add "dev:relay" to package.json scripts`,
	RunE: runInit,
}

var (
	initDir            string
	initForce          bool
	initAddScript      bool
	initNonInteractive bool
)

func init() {
	registerProjectFlag(initCmd.Flags(), &initDir)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
	initCmd.Flags().BoolVar(&initAddScript, "add-script", false, "Add a dev:relay script to package.json without prompting")
	initCmd.Flags().BoolVarP(&initNonInteractive, "non-interactive", "y", false, "Skip wizard prompts, just create config")
}

// runInit executes the init wizard.
func runInit(cmd *cobra.Command, args []string) error {
	ui.PrintBanner(version)

	dir := initDir
	if dir == "" {
		dir = "."
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	relayDir := filepath.Join(root, config.ConfigDirName)
	configPath := config.ConfigPath(root)

	// Check if already initialized
	if _, err := os.Stat(configPath); err == nil && !initForce {
		// --add-script on an initialized project just patches package.json.
		if initAddScript {
			cfg, err := config.LoadProjectConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			wizardAddScript(root, cfg)
			return nil
		}
		if initNonInteractive {
			ui.PrintWarning("Project already initialized")
			ui.PrintInfo("Use --force to overwrite")
			return nil
		}
		overwrite, err := ui.PromptConfirm("Project already initialized, overwrite .devrelay/config.yaml?", false)
		if err != nil || !overwrite {
			ui.PrintInfo("Keeping the existing configuration")
			return nil
		}
	}

	// ── Step 1/3: Detect Dev Server ──────────────────────────────────────
	ui.PrintStepHeader(1, 3, "Detect Dev Server")

	serverCfg, family := wizardDetect(root)

	// ── Step 2/3: Write Configuration ────────────────────────────────────
	ui.PrintStepHeader(2, 3, "Write Configuration")

	cfg, err := wizardWriteConfig(root, relayDir, configPath, serverCfg)
	if err != nil {
		return err
	}

	// ── Step 3/3: Package Scripts ────────────────────────────────────────
	ui.PrintStepHeader(3, 3, "Package Scripts")

	scriptAdded := wizardAddScript(root, cfg)

	// ── Summary ──────────────────────────────────────────────────────────
	ui.Println()
	ui.PrintSuccess("Project %s initialized", cfg.Project.Name)
	if family == "vite" {
		ui.PrintDim("  Vite's HMR client follows the page origin, no vite.config changes needed")
	}

	steps := []ui.NextStep{
		{Label: "Start the bridge:", Command: "devrelay serve"},
		{Label: "Check the setup:", Command: "devrelay doctor"},
	}
	if scriptAdded {
		steps = append(steps, ui.NextStep{Label: "Or run via npm:", Command: "npm run dev:relay"})
	}
	ui.PrintNextSteps(steps)

	return nil
}

// ---------------------------------------------------------------------------
// Step 1: Detect Dev Server
// ---------------------------------------------------------------------------

// wizardDetect runs provider detection and, when nothing matches in
// interactive mode, lets the user pick a family manually. The returned
// family is "" when the choice is deferred to serve-time detection.
func wizardDetect(root string) (*config.ServerConfig, string) {
	ui.StartSpinner("Detecting dev server...")
	detections := bridge.DefaultRegistry().DetectAll(root)
	ui.StopSpinner()

	if len(detections) > 0 {
		best := detections[0]
		ui.PrintCheckResult(
			fmt.Sprintf("%s detected", best.Provider.DisplayName()),
			"pass",
			strings.Join(best.Detection.Indicators, ", "),
		)
		return best.Provider.DefaultConfig(), best.Provider.Name()
	}

	ui.PrintCheckResult("No known dev server detected", "warn",
		"Detection looks for bundler markers like vite.config.* or package.json dependencies")

	if initNonInteractive {
		ui.PrintInfo("Leaving server.family empty, detection runs again at serve time")
		return &config.ServerConfig{}, ""
	}

	options := make([]ui.SelectOption, 0)
	for _, p := range bridge.DefaultRegistry().All() {
		options = append(options, ui.SelectOption{
			Label:       p.DisplayName(),
			Value:       p.Name(),
			Description: familyDescription(p.Name()),
		})
	}
	options = append(options, ui.SelectOption{
		Label:       "Decide later",
		Value:       "",
		Description: "Leave server.family empty and auto-detect at serve time",
	})

	_, family, err := ui.Select("Which dev server does this project use?", options, len(options)-1)
	if err != nil || family == "" {
		return &config.ServerConfig{}, ""
	}

	provider, err := bridge.DefaultRegistry().Get(family)
	if err != nil {
		return &config.ServerConfig{}, ""
	}

	cfg := provider.DefaultConfig()
	if family == "command" {
		cmdline, err := ui.Prompt("Launch command (e.g. 'npm run dev'):")
		if err == nil {
			cfg.Command = strings.TrimSpace(cmdline)
		}
	}
	return cfg, family
}

// familyDescription returns the one-line description shown next to a
// family in the manual selection prompt.
func familyDescription(family string) string {
	switch family {
	case "vite":
		return "Vite projects, ports injected automatically"
	case "command":
		return "Any launch command, health-probed until ready"
	default:
		return ""
	}
}

// ---------------------------------------------------------------------------
// Step 2: Write Configuration
// ---------------------------------------------------------------------------

// wizardWriteConfig assembles the project config and writes it under
// .devrelay/, along with a .gitignore for the runtime state file.
func wizardWriteConfig(root, relayDir, configPath string, serverCfg *config.ServerConfig) (*config.ProjectConfig, error) {
	projectName := providers.ProjectName(root)

	if !initNonInteractive {
		name, err := ui.Prompt(fmt.Sprintf("Project name [%s]:", projectName))
		if err == nil && strings.TrimSpace(name) != "" {
			projectName = util.SanitizeForName(strings.TrimSpace(name))
		}
	}

	cfg := &config.ProjectConfig{
		Project: config.Project{Name: projectName},
		Server:  *serverCfg,
		Defaults: config.Defaults{
			OpenBrowser: true,
		},
	}

	if err := config.WriteProjectConfig(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to write config: %w", err)
	}

	// dev-server.json is runtime state, keep it out of version control.
	gitignorePath := filepath.Join(relayDir, ".gitignore")
	gitignoreContent := `# devrelay local state
dev-server.json
`
	if err := os.WriteFile(gitignorePath, []byte(gitignoreContent), 0644); err != nil {
		ui.PrintWarning("Failed to create .gitignore: %v", err)
	}

	ui.PrintSuccess("Wrote %s", configPath)
	return cfg, nil
}

// ---------------------------------------------------------------------------
// Step 3: Package Scripts
// ---------------------------------------------------------------------------

// wizardAddScript offers to add a dev:relay script to package.json so
// the bridge starts through the package manager the team already uses.
// Returns true when the script is present afterwards.
func wizardAddScript(root string, cfg *config.ProjectConfig) bool {
	pkgPath := filepath.Join(root, cfg.Server.Dir, "package.json")
	data, err := os.ReadFile(pkgPath)
	if err != nil {
		ui.PrintInfo("No package.json, skipping script setup")
		return false
	}

	if gjson.GetBytes(data, "scripts.dev:relay").Exists() {
		ui.PrintInfo("package.json already has a dev:relay script")
		return true
	}

	add := initAddScript
	if !add && !initNonInteractive {
		confirmed, err := ui.PromptConfirm("Add a 'dev:relay' script to package.json?", true)
		add = err == nil && confirmed
	}
	if !add {
		ui.PrintInfo("Skipped, run 'devrelay init --add-script' later if you change your mind")
		return false
	}

	patched, err := sjson.SetBytes(data, "scripts.dev:relay", "devrelay serve")
	if err != nil {
		ui.PrintWarning("Could not update package.json: %v", err)
		return false
	}
	if err := os.WriteFile(pkgPath, patched, 0644); err != nil {
		ui.PrintWarning("Could not write package.json: %v", err)
		return false
	}

	ui.PrintSuccess("Added \"dev:relay\": \"devrelay serve\" to package.json scripts")
	return true
}
