package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/lspkit/extbridge/internal/exthost"
	"github.com/lspkit/extbridge/pkg/protocol"
)

const manifestFileName = "bundle.yaml"

// Manifest represents the bundle.yaml structure describing an extension
// bundle.
type Manifest struct {
	Name         string     `yaml:"name"`
	Version      string     `yaml:"version"`
	Capabilities []string   `yaml:"capabilities"`
	Languages    []string   `yaml:"languages"`
	Triggers     []string   `yaml:"trigger_characters"`
	Wasm         WasmConfig `yaml:"wasm"`
	Author       string     `yaml:"author"`
	License      string     `yaml:"license"`

	dir string
}

// WasmConfig holds the guest module configuration.
type WasmConfig struct {
	File string `yaml:"file"`
	Size int    `yaml:"size"` // KB
}

// validCapabilities is the set of capability names a bundle may declare.
// The names match the capability methods served over the channel.
var validCapabilities = map[string]bool{
	exthost.MethodWorkspaceSymbols: true,
	exthost.MethodDefinition:       true,
	exthost.MethodTypeDefinition:   true,
	exthost.MethodReferences:       true,
	exthost.MethodDocumentSymbols:  true,
	exthost.MethodCompletions:      true,
	exthost.MethodCodeActions:      true,
	exthost.MethodCodeLenses:       true,
	exthost.MethodDocumentLinks:    true,
}

// ParseManifest reads and parses bundle.yaml from a directory.
func ParseManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, manifestFileName)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest fields.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "name",
			Message: "name is required",
		}
	}

	if m.Version == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "version",
			Message: "version is required",
		}
	}

	if m.Wasm.File == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "wasm.file",
			Message: "wasm.file is required",
		}
	}

	if len(m.Capabilities) == 0 {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "capabilities",
			Message: "at least one capability is required",
		}
	}

	for _, cap := range m.Capabilities {
		if !validCapabilities[cap] {
			return &ManifestValidationError{
				Path:    m.Path(),
				Field:   "capabilities",
				Message: fmt.Sprintf("unknown capability: %s", cap),
			}
		}
	}

	wasmPath := m.WasmPath()
	if _, err := os.Stat(wasmPath); os.IsNotExist(err) {
		return &WasmNotFoundError{
			ManifestPath: m.Path(),
			WasmFile:     m.Wasm.File,
		}
	}

	return nil
}

// HasCapability reports whether the bundle declares a capability.
func (m *Manifest) HasCapability(name string) bool {
	for _, cap := range m.Capabilities {
		if cap == name {
			return true
		}
	}
	return false
}

// Selector builds a document selector from the declared languages.
// An empty language list yields a selector that matches every document.
func (m *Manifest) Selector() protocol.DocumentSelector {
	if len(m.Languages) == 0 {
		return nil
	}
	selector := make(protocol.DocumentSelector, 0, len(m.Languages))
	for _, lang := range m.Languages {
		selector = append(selector, protocol.DocumentFilter{Language: lang})
	}
	return selector
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, manifestFileName)
}

// WasmPath returns the absolute path to the Wasm file.
func (m *Manifest) WasmPath() string {
	return filepath.Join(m.dir, m.Wasm.File)
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}

// Bundle represents a loaded extension bundle with its manifest and
// compiled guest module.
type Bundle struct {
	Manifest *Manifest
	Compiled *CompiledBundle
	LoadedAt time.Time
}

// Name returns the bundle name.
func (b *Bundle) Name() string {
	return b.Manifest.Name
}

// Version returns the bundle version.
func (b *Bundle) Version() string {
	return b.Manifest.Version
}

// Capabilities returns the capabilities declared by this bundle.
func (b *Bundle) Capabilities() []string {
	return b.Manifest.Capabilities
}

// Loader handles loading bundles from disk.
type Loader struct {
	runtime *Runtime
	logger  *zap.Logger
}

// NewLoader creates a new bundle loader.
func NewLoader(runtime *Runtime, logger *zap.Logger) *Loader {
	return &Loader{
		runtime: runtime,
		logger:  logger.With(zap.String("component", "bundle-loader")),
	}
}

// LoadBundle loads a single bundle from a directory.
func (l *Loader) LoadBundle(ctx context.Context, dir string) (*Bundle, error) {
	l.logger.Debug("Loading bundle", zap.String("dir", dir))

	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loading bundle",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.Strings("capabilities", manifest.Capabilities),
	)

	compiled, err := l.compile(ctx, manifest)
	if err != nil {
		return nil, &BundleLoadError{
			BundleName: manifest.Name,
			Err:        err,
		}
	}

	bundle := &Bundle{
		Manifest: manifest,
		Compiled: compiled,
		LoadedAt: time.Now(),
	}

	l.logger.Info("Bundle loaded successfully",
		zap.String("name", manifest.Name),
		zap.Int64("size_bytes", compiled.SizeBytes),
	)

	return bundle, nil
}

// compile compiles the bundle's guest module, reusing the runtime cache
// when the same bundle was compiled before.
func (l *Loader) compile(ctx context.Context, manifest *Manifest) (*CompiledBundle, error) {
	if cached, ok := l.runtime.GetCompiledBundle(manifest.Name); ok {
		l.logger.Debug("Bundle cache hit", zap.String("bundle", manifest.Name))
		return cached, nil
	}

	wasmPath := manifest.WasmPath()
	wasmBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read module %s: %w", wasmPath, err)
	}

	start := time.Now()

	// wazero.CompileModule decodes and validates the Wasm binary.
	// CPU-intensive but only done once per bundle.
	compiled, err := l.runtime.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, &CompilationError{
			BundleName: manifest.Name,
			Err:        err,
		}
	}

	bundle := &CompiledBundle{
		Module:     compiled,
		Name:       manifest.Name,
		Source:     wasmPath,
		SizeBytes:  int64(len(wasmBytes)),
		CompiledAt: time.Now().Unix(),
	}
	l.runtime.StoreCompiledBundle(bundle)

	l.logger.Info("Bundle compiled",
		zap.String("bundle", manifest.Name),
		zap.Duration("duration", time.Since(start)),
	)

	return bundle, nil
}

// DiscoverBundles scans directories for bundles.
func (l *Loader) DiscoverBundles(ctx context.Context, paths []string) ([]*Bundle, error) {
	var bundles []*Bundle
	var failed int

	for _, basePath := range paths {
		l.logger.Debug("Scanning bundle directory", zap.String("path", basePath))

		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Bundle path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			bundleDir := filepath.Join(basePath, entry.Name())

			bundle, err := l.LoadBundle(ctx, bundleDir)
			if err != nil {
				l.logger.Error("Failed to load bundle",
					zap.String("dir", bundleDir),
					zap.Error(err),
				)
				failed++
				continue
			}

			bundles = append(bundles, bundle)
		}
	}

	if len(bundles) > 0 && failed > 0 {
		l.logger.Warn("Some bundles failed to load",
			zap.Int("loaded", len(bundles)),
			zap.Int("failed", failed),
		)
	}

	if len(bundles) == 0 {
		return nil, &NoBundlesFoundError{Paths: paths}
	}

	return bundles, nil
}
