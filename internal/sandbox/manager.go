package sandbox

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/lspkit/extbridge/internal/config"
	"github.com/lspkit/extbridge/internal/exthost"
)

// Manager owns the bundle lifecycle: discovery, instantiation, provider
// registration with the extension host, and shutdown.
type Manager struct {
	cfg         *config.BridgeConfig
	runtime     *Runtime
	loader      *Loader
	registry    *Registry
	instanceMgr *InstanceManager
	logger      *zap.Logger

	mu            sync.RWMutex
	loaded        bool
	instances     []*Instance
	registrations []*exthost.Registration
}

// NewManager creates a new bundle manager.
func NewManager(cfg *config.BridgeConfig, runtime *Runtime, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		runtime:     runtime,
		loader:      NewLoader(runtime, logger),
		registry:    NewRegistry(logger),
		instanceMgr: NewInstanceManager(runtime, logger),
		logger:      logger.With(zap.String("component", "bundle-manager")),
	}
}

// LoadAll discovers and loads all bundles from the configured paths.
// An empty result is not an error; the bridge runs without bundles.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return fmt.Errorf("bundles already loaded")
	}

	m.logger.Info("Loading bundles",
		zap.Strings("paths", m.cfg.BundlePaths),
	)

	bundles, err := m.loader.DiscoverBundles(ctx, m.cfg.BundlePaths)
	if err != nil {
		if _, ok := err.(*NoBundlesFoundError); ok {
			m.logger.Warn("No bundles found in configured paths",
				zap.Strings("paths", m.cfg.BundlePaths),
			)
			m.loaded = true
			return nil
		}
		return err
	}

	for _, bundle := range bundles {
		if err := m.registry.Register(bundle); err != nil {
			m.logger.Error("Failed to register bundle",
				zap.String("name", bundle.Manifest.Name),
				zap.Error(err),
			)
			continue
		}
	}

	m.loaded = true

	m.logger.Info("Bundles loaded successfully",
		zap.Int("count", len(bundles)),
	)

	return nil
}

// Attach instantiates every registered bundle and registers a provider
// with the extension host for each capability the bundle declares.
func (m *Manager) Attach(ctx context.Context, host *exthost.Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, bundle := range m.registry.List() {
		instance, err := m.instanceMgr.Instantiate(ctx, bundle.Name())
		if err != nil {
			return err
		}
		m.instances = append(m.instances, instance)

		provider := NewProvider(bundle.Name(), instance, m.logger)
		selector := bundle.Manifest.Selector()

		for _, cap := range bundle.Manifest.Capabilities {
			var reg *exthost.Registration
			switch cap {
			case exthost.MethodWorkspaceSymbols:
				reg = host.RegisterWorkspaceSymbolProvider(provider)
			case exthost.MethodDefinition:
				reg = host.RegisterDefinitionProvider(selector, provider)
			case exthost.MethodTypeDefinition:
				reg = host.RegisterTypeDefinitionProvider(selector, provider)
			case exthost.MethodReferences:
				reg = host.RegisterReferenceProvider(selector, provider)
			case exthost.MethodDocumentSymbols:
				reg = host.RegisterDocumentSymbolProvider(selector, provider)
			case exthost.MethodCompletions:
				reg = host.RegisterCompletionProvider(selector, provider, bundle.Manifest.Triggers...)
			case exthost.MethodCodeActions:
				reg = host.RegisterCodeActionProvider(selector, provider)
			case exthost.MethodCodeLenses:
				reg = host.RegisterCodeLensProvider(selector, provider)
			case exthost.MethodDocumentLinks:
				reg = host.RegisterDocumentLinkProvider(selector, provider)
			default:
				// Unreachable after manifest validation.
				continue
			}
			m.registrations = append(m.registrations, reg)
		}

		m.logger.Info("Bundle attached",
			zap.String("name", bundle.Name()),
			zap.String("instance_id", instance.ID),
			zap.Int("capabilities", len(bundle.Manifest.Capabilities)),
		)
	}

	return nil
}

// GetBundle retrieves a bundle by name.
func (m *Manager) GetBundle(name string) (*Bundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bundle, ok := m.registry.Get(name)
	if !ok {
		return nil, &BundleNotFoundError{BundleName: name}
	}

	return bundle, nil
}

// Registry returns the bundle registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// IsLoaded returns whether bundles have been loaded.
func (m *Manager) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// Shutdown disposes provider registrations, closes instances and shuts
// down the runtime.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Shutting down bundle manager")

	for _, reg := range m.registrations {
		reg.Dispose()
	}
	m.registrations = nil

	for _, instance := range m.instances {
		if err := instance.Close(ctx); err != nil {
			m.logger.Warn("Failed to close instance",
				zap.String("instance_id", instance.ID),
				zap.Error(err),
			)
		}
	}
	m.instances = nil

	if err := m.runtime.Close(ctx); err != nil {
		m.logger.Error("Failed to shutdown runtime", zap.Error(err))
		return err
	}

	m.logger.Info("Bundle manager shutdown complete")
	return nil
}
