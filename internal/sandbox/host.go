package sandbox

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// hostFunctions implements the functions the bridge exports to guest
// modules under the "host" import namespace.
type hostFunctions struct {
	logger *zap.Logger
}

func newHostFunctions(logger *zap.Logger) *hostFunctions {
	return &hostFunctions{
		logger: logger.With(zap.String("component", "sandbox-host")),
	}
}

// logMessage is called by guest modules to log messages.
// Signature: log_message(level, ptr, length)
// level: 0 = debug, 1 = info, 2 = warn, 3 = error
func (h *hostFunctions) logMessage(ctx context.Context, mod api.Module, level uint32, ptr uint32, length uint32) {
	msg, ok := mod.Memory().Read(ptr, length)
	if !ok {
		h.logger.Error("Failed to read log message from guest memory",
			zap.Uint32("ptr", ptr),
			zap.Uint32("length", length),
		)
		return
	}

	switch level {
	case 0:
		h.logger.Debug(string(msg))
	case 1:
		h.logger.Info(string(msg))
	case 2:
		h.logger.Warn(string(msg))
	case 3:
		h.logger.Error(string(msg))
	default:
		h.logger.Info(string(msg))
	}
}
