package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// Guest ABI exports. A bundle's Wasm module provides an allocator and a
// single JSON request entry point; the reply comes back as a packed
// pointer/length pair.
const (
	exportAllocate = "allocate"
	exportInvoke   = "invoke"
)

// InstanceManager creates and manages guest instances.
type InstanceManager struct {
	runtime   *Runtime
	logger    *zap.Logger
	hostFuncs *hostFunctions

	hostOnce sync.Once
	hostErr  error
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime:   runtime,
		hostFuncs: newHostFunctions(logger),
		logger:    logger.With(zap.String("component", "sandbox-instance")),
	}
}

// Instance represents an instantiated guest module.
type Instance struct {
	module api.Module

	ID        string
	Bundle    string
	CreatedAt int64

	// Exported functions (cached at instantiation).
	exports map[string]api.Function
	memory  *Memory

	// Serializes guest calls. The guest ABI is single-threaded.
	mu sync.Mutex

	timeout time.Duration
	runtime *Runtime
}

// Instantiate creates a new instance of a compiled bundle.
// Host functions are made importable by the guest first.
func (m *InstanceManager) Instantiate(ctx context.Context, bundleName string) (*Instance, error) {
	compiled, ok := m.runtime.GetCompiledBundle(bundleName)
	if !ok {
		return nil, &BundleNotFoundError{BundleName: bundleName}
	}

	if err := m.ensureHostModule(ctx); err != nil {
		return nil, err
	}

	instanceID := uuid.NewString()

	m.logger.Info("Instantiating bundle",
		zap.String("bundle", bundleName),
		zap.String("instance_id", instanceID),
	)

	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions("_initialize", "_start")

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		return nil, &InstantiationError{
			BundleName: bundleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	exports := make(map[string]api.Function)
	for _, name := range []string{exportAllocate, exportInvoke} {
		if fn := module.ExportedFunction(name); fn != nil {
			exports[name] = fn
		}
	}

	instance := &Instance{
		module:    module,
		ID:        instanceID,
		Bundle:    bundleName,
		CreatedAt: time.Now().Unix(),
		exports:   exports,
		memory:    newMemory(module, exports[exportAllocate]),
		timeout:   time.Duration(m.runtime.config.ExecutionTimeout) * time.Second,
		runtime:   m.runtime,
	}

	m.runtime.StoreInstance(instanceID, module)

	m.logger.Info("Bundle instantiated",
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(exports)),
	)

	return instance, nil
}

// ensureHostModule instantiates the "host" import module once per runtime.
func (m *InstanceManager) ensureHostModule(ctx context.Context) error {
	m.hostOnce.Do(func() {
		builder := m.runtime.runtime.NewHostModuleBuilder("host")

		builder.NewFunctionBuilder().
			WithFunc(m.hostFuncs.logMessage).
			WithParameterNames("level", "ptr", "length").
			Export("log_message")

		if _, err := builder.Instantiate(ctx); err != nil {
			m.hostErr = fmt.Errorf("failed to instantiate host module: %w", err)
		}
	})
	return m.hostErr
}

// Call sends a JSON payload to the guest's invoke export and returns the
// guest's JSON reply. Calls are serialized per instance.
func (i *Instance) Call(ctx context.Context, payload []byte) ([]byte, error) {
	invoke, ok := i.exports[exportInvoke]
	if !ok {
		return nil, &FunctionNotFoundError{BundleName: i.Bundle, FunctionName: exportInvoke}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	ptr, length, err := i.memory.WriteBytes(ctx, payload)
	if err != nil {
		return nil, err
	}

	results, err := invoke.Call(ctx, uint64(ptr), uint64(length))
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, &MemoryAccessError{Operation: "result"}
	}

	// The guest packs the reply location as ptr<<32 | len.
	replyPtr := uint32(results[0] >> 32)
	replyLen := uint32(results[0])

	reply, ok := i.memory.ReadBytes(replyPtr, replyLen)
	if !ok {
		return nil, &MemoryAccessError{Operation: "read", Address: replyPtr, Length: replyLen}
	}

	// Copy out: the backing array belongs to guest memory and may be
	// reused by the next call.
	out := make([]byte, len(reply))
	copy(out, reply)
	return out, nil
}

// Close closes the instance and releases resources.
func (i *Instance) Close(ctx context.Context) error {
	i.runtime.DeleteInstance(i.ID)
	return i.module.Close(ctx)
}
