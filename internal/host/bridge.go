package host

import (
	"context"

	"go.uber.org/zap"

	"github.com/lspkit/extbridge/internal/command"
	"github.com/lspkit/extbridge/internal/config"
	"github.com/lspkit/extbridge/internal/document"
	"github.com/lspkit/extbridge/internal/exthost"
	"github.com/lspkit/extbridge/internal/rpc"
	"github.com/lspkit/extbridge/internal/sandbox"
)

// Bridge assembles the two sides of the command channel: the host-side
// command surface and the extension host serving capability providers,
// connected by an in-process pipe.
type Bridge struct {
	cfg    *config.BridgeConfig
	logger *zap.Logger

	docs     *document.MemoryStore
	ext      *exthost.Host
	commands *Commands
	bundles  *sandbox.Manager

	hostEP *rpc.Endpoint
	extEP  *rpc.Endpoint
}

// NewBridge wires the bridge from configuration.
func NewBridge(ctx context.Context, cfg *config.BridgeConfig, logger *zap.Logger) (*Bridge, error) {
	docs := document.NewMemoryStore()
	ext := exthost.NewHost(docs, cfg.FanOutLimit, logger)

	ta, tb := rpc.Pipe()
	hostEP := rpc.NewEndpoint("host", ta, logger)
	extEP := rpc.NewEndpoint("extension", tb, logger)

	exthost.NewProxy(ext, logger).Attach(extEP)

	commands := NewCommands(command.NewRegistry(logger), hostEP, logger)
	if err := commands.RegisterBuiltins(); err != nil {
		return nil, err
	}

	runtime, err := sandbox.NewRuntime(ctx, logger, &sandbox.RuntimeConfig{
		MemoryPages:      cfg.Sandbox.MemoryPages,
		DebugEnabled:     cfg.Sandbox.Debug,
		CacheDir:         cfg.Sandbox.CacheDir,
		MaxInstances:     cfg.Sandbox.MaxInstances,
		ExecutionTimeout: cfg.Sandbox.ExecutionTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &Bridge{
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "bridge")),
		docs:     docs,
		ext:      ext,
		commands: commands,
		bundles:  sandbox.NewManager(cfg, runtime, logger),
		hostEP:   hostEP,
		extEP:    extEP,
	}, nil
}

// Start brings up both channel endpoints, loads the configured bundles
// and attaches their providers to the extension host.
func (b *Bridge) Start(ctx context.Context) error {
	b.hostEP.Start(ctx)
	b.extEP.Start(ctx)

	if err := b.bundles.LoadAll(ctx); err != nil {
		return err
	}
	if err := b.bundles.Attach(ctx, b.ext); err != nil {
		return err
	}

	// Make the provider registrations visible to host-side callers.
	if err := b.hostEP.Sync(ctx); err != nil {
		return err
	}

	b.logger.Info("Bridge started",
		zap.Int("bundles", b.bundles.Registry().Count()),
	)
	return nil
}

// Commands returns the host-side command surface.
func (b *Bridge) Commands() *Commands {
	return b.commands
}

// Documents returns the shared document store.
func (b *Bridge) Documents() *document.MemoryStore {
	return b.docs
}

// ExtensionHost returns the extension-side provider host.
func (b *Bridge) ExtensionHost() *exthost.Host {
	return b.ext
}

// Sync flushes in-flight channel traffic in both directions.
func (b *Bridge) Sync(ctx context.Context) error {
	return b.hostEP.Sync(ctx)
}

// Shutdown tears down bundles, the sandbox runtime and both endpoints.
func (b *Bridge) Shutdown(ctx context.Context) error {
	err := b.bundles.Shutdown(ctx)

	if closeErr := b.hostEP.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if closeErr := b.extEP.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	b.logger.Info("Bridge shutdown complete")
	return err
}
