package bridge

import (
	"fmt"
	"sort"

	"github.com/devrelay/cli/internal/config"
)

// Provider supplies the launch recipe for one dev server family.
//
// Implement this interface to support a new bundler. Each provider
// handles detection (is this project that family?), default
// configuration for init, and construction of the DevServer that the
// Manager supervises.
//
// Current implementations:
//   - providers.ViteProvider: Vite projects, detected from package.json
//   - providers.CommandProvider: explicit user-configured commands
type Provider interface {
	// Name returns the family identifier used in configuration
	// ("vite", "command").
	Name() string

	// DisplayName returns the human-readable name for prompts and logs.
	DisplayName() string

	// Detect checks whether this provider can handle the project in dir.
	// Returns (nil, nil) when it cannot.
	//
	// Parameters:
	//   - dir: The project directory to analyze
	//
	// Returns:
	//   - *DetectionResult: Detection result with confidence, or nil
	//   - error: Any error that occurred during detection
	Detect(dir string) (*DetectionResult, error)

	// DefaultConfig returns the server configuration init scaffolds for
	// this family.
	DefaultConfig() *config.ServerConfig

	// NewDevServer builds the dev server for the Manager to supervise.
	//
	// Parameters:
	//   - cfg: Server configuration from .devrelay/config.yaml
	//   - workDir: Resolved working directory for the process
	//   - httpPort: Negotiated main port
	//   - hmrPort: Negotiated HMR port, 0 for a shared channel
	//
	// Returns:
	//   - DevServer: The dev server instance
	//   - error: Any error that occurred
	NewDevServer(cfg *config.ServerConfig, workDir string, httpPort, hmrPort int) (DevServer, error)
}

// DetectionResult contains the result of provider detection.
type DetectionResult struct {
	// Provider is the family name that detected this project.
	Provider string

	// Confidence is a score from 0.0 to 1.0.
	// - 0.9+: strong match (vite in package.json dependencies)
	// - 0.7-0.8: good match (vite.config.* present, or a script runs vite)
	// - below: weak hints
	Confidence float64

	// Indicators lists the files/patterns that triggered detection,
	// for user feedback and doctor output.
	Indicators []string
}

// Registry manages available dev server providers.
// Use DefaultRegistry() to get the registry the providers package
// populates during init.
type Registry struct {
	providers []Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make([]Provider, 0)}
}

// Register adds a provider to the registry.
func (r *Registry) Register(provider Provider) {
	r.providers = append(r.providers, provider)
}

// defaultRegistry is the singleton registry, initialized lazily because
// the providers package registers into it during its init.
var defaultRegistry *Registry

// DefaultRegistry returns the registry with all built-in providers.
func DefaultRegistry() *Registry {
	if defaultRegistry == nil {
		defaultRegistry = NewRegistry()
	}
	return defaultRegistry
}

// RegisterProvider registers a provider with the default registry.
// Called by provider implementations during package init.
func RegisterProvider(provider Provider) {
	DefaultRegistry().Register(provider)
}

// Get returns a provider by family name.
//
// Parameters:
//   - name: The family name (e.g., "vite", "command")
//
// Returns:
//   - Provider: The provider instance
//   - error: Error if no such provider is registered
func (r *Registry) Get(name string) (Provider, error) {
	for _, p := range r.providers {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown dev server family: %s", name)
}

// All returns all registered providers.
func (r *Registry) All() []Provider {
	return r.providers
}

// DetectProvider finds the best matching provider for a directory,
// by highest detection confidence.
//
// Parameters:
//   - dir: The project directory to analyze
//
// Returns:
//   - Provider: The best matching provider
//   - *DetectionResult: Its detection result
//   - error: Error if no provider matches
func (r *Registry) DetectProvider(dir string) (Provider, *DetectionResult, error) {
	var bestProvider Provider
	var bestResult *DetectionResult

	for _, p := range r.providers {
		result, err := p.Detect(dir)
		if err != nil || result == nil {
			continue
		}
		if bestResult == nil || result.Confidence > bestResult.Confidence {
			bestProvider = p
			bestResult = result
		}
	}

	if bestProvider == nil {
		return nil, nil, fmt.Errorf("no compatible dev server found")
	}
	return bestProvider, bestResult, nil
}

// DetectAll finds all providers that match a directory, sorted by
// confidence (highest first). Used by doctor for its report.
func (r *Registry) DetectAll(dir string) []ProviderDetection {
	var results []ProviderDetection
	for _, p := range r.providers {
		result, err := p.Detect(dir)
		if err != nil || result == nil {
			continue
		}
		results = append(results, ProviderDetection{Provider: p, Detection: result})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Detection.Confidence > results[j].Detection.Confidence
	})
	return results
}

// ProviderDetection pairs a provider with its detection result.
type ProviderDetection struct {
	Provider  Provider
	Detection *DetectionResult
}

// Select resolves which provider launches the dev server.
// An explicitly configured family wins; otherwise the best detection
// match is used.
//
// Parameters:
//   - family: server.family from config, empty for auto-detection
//   - dir: The project directory for detection
//
// Returns:
//   - Provider: The selected provider
//   - error: Error if the family is unknown or nothing was detected
func (r *Registry) Select(family, dir string) (Provider, error) {
	if family != "" {
		return r.Get(family)
	}

	provider, _, err := r.DetectProvider(dir)
	if err != nil {
		return nil, fmt.Errorf("%w in %s; set server.family in .devrelay/config.yaml or run 'devrelay init'", err, dir)
	}
	return provider, nil
}
