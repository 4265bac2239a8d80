package host

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/lspkit/extbridge/internal/config"
	"github.com/lspkit/extbridge/internal/document"
	"github.com/lspkit/extbridge/pkg/protocol"
)

func TestBridgeLifecycle(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	cfg, err := config.LoadBridgeConfig("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.BundlePaths = []string{t.TempDir()} // empty dir, no bundles

	bridge, err := NewBridge(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("NewBridge failed: %v", err)
	}

	if err := bridge.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	bridge.Documents().Put(document.NewModel("file:///a.go", "go", 1, "package a\n"))

	// The channel is live end to end: a capability command with no
	// providers answers with an empty result, not an error.
	result, err := bridge.Commands().Execute(ctx, CmdDefinition, "file:///a.go", protocol.Position{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if locs := result.([]protocol.Location); len(locs) != 0 {
		t.Errorf("expected empty result, got %v", locs)
	}

	if err := bridge.Sync(ctx); err != nil {
		t.Errorf("Sync failed: %v", err)
	}

	if err := bridge.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}
