package sandbox

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
)

// Runtime manages the wazero runtime lifecycle. One Runtime hosts every
// extension bundle loaded by the bridge.
type Runtime struct {
	runtime wazero.Runtime

	// Compiled bundle cache (key: bundle name/path -> value: compiled module).
	// Avoids recompiling the same Wasm binary across instantiations.
	modules sync.Map // map[string]*CompiledBundle

	// Active guest instances, tracked for cleanup on shutdown.
	instances sync.Map // map[string]api.Module

	config *RuntimeConfig
	logger *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// RuntimeConfig holds runtime configuration.
type RuntimeConfig struct {
	// Memory limit per guest module (in pages, 64KB each).
	// Default: 256 pages = 16MB max memory per module.
	MemoryPages uint32

	// Enable debug logging for guest execution.
	DebugEnabled bool

	// Compilation cache directory (for persistent caching).
	// If empty, uses in-memory caching only.
	CacheDir string

	// Maximum number of concurrent instances.
	MaxInstances int

	// Guest call timeout in seconds. Zero disables the deadline.
	ExecutionTimeout int
}

// CompiledBundle wraps a wazero.CompiledModule with metadata.
type CompiledBundle struct {
	Module wazero.CompiledModule

	Name      string
	Source    string
	SizeBytes int64

	CompiledAt int64
}

// NewRuntime creates and initializes a new wazero runtime.
// This should be called once during application startup.
func NewRuntime(ctx context.Context, logger *zap.Logger, config *RuntimeConfig) (*Runtime, error) {
	if config == nil {
		config = DefaultRuntimeConfig()
	}

	rc := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true)
	if config.MemoryPages > 0 {
		rc = rc.WithMemoryLimitPages(config.MemoryPages)
	}
	if config.CacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(config.CacheDir)
		if err != nil {
			return nil, &CacheError{Dir: config.CacheDir, Err: err}
		}
		rc = rc.WithCompilationCache(cache)
	}

	r := wazero.NewRuntimeWithConfig(ctx, rc)

	runtime := &Runtime{
		runtime: r,
		config:  config,
		logger:  logger.With(zap.String("component", "sandbox-runtime")),
		closed:  make(chan struct{}),
	}

	logger.Info("Sandbox runtime initialized",
		zap.Uint32("memory_pages", config.MemoryPages),
		zap.Bool("debug_enabled", config.DebugEnabled),
		zap.String("cache_dir", config.CacheDir),
		zap.Int("max_instances", config.MaxInstances),
	)

	return runtime, nil
}

// DefaultRuntimeConfig returns sensible defaults.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		MemoryPages:      256, // 16MB
		DebugEnabled:     false,
		CacheDir:         "",
		MaxInstances:     100,
		ExecutionTimeout: 30,
	}
}

// Close gracefully shuts down the runtime.
// Safe to call multiple times (idempotent).
func (r *Runtime) Close(ctx context.Context) error {
	var err error
	r.closeOnce.Do(func() {
		r.logger.Info("Shutting down sandbox runtime")

		// Close all active instances first.
		r.instances.Range(func(key, value interface{}) bool {
			if inst, ok := value.(interface{ Close(context.Context) error }); ok {
				if closeErr := inst.Close(ctx); closeErr != nil {
					r.logger.Warn("Failed to close instance",
						zap.String("instance_id", key.(string)),
						zap.Error(closeErr),
					)
				}
			}
			return true
		})

		// Close the runtime (closes compiled modules).
		err = r.runtime.Close(ctx)

		close(r.closed)
		r.logger.Info("Sandbox runtime shutdown complete")
	})

	return err
}

// GetCompiledBundle retrieves a compiled bundle from cache.
func (r *Runtime) GetCompiledBundle(name string) (*CompiledBundle, bool) {
	if val, ok := r.modules.Load(name); ok {
		if mod, ok := val.(*CompiledBundle); ok {
			return mod, true
		}
	}
	return nil, false
}

// StoreCompiledBundle stores a compiled bundle in cache.
func (r *Runtime) StoreCompiledBundle(bundle *CompiledBundle) {
	r.modules.Store(bundle.Name, bundle)
}

// GetInstance retrieves an active instance.
func (r *Runtime) GetInstance(instanceID string) (interface{}, bool) {
	return r.instances.Load(instanceID)
}

// StoreInstance stores an active instance.
func (r *Runtime) StoreInstance(instanceID string, instance interface{}) {
	r.instances.Store(instanceID, instance)
}

// DeleteInstance removes an instance from tracking.
func (r *Runtime) DeleteInstance(instanceID string) {
	r.instances.Delete(instanceID)
}

// IsClosed returns whether the runtime has been closed.
func (r *Runtime) IsClosed() bool {
	select {
	case <-r.closed:
		return true
	default:
		return false
	}
}
