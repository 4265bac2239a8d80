// Package command implements the command table: a single-handler-per-id
// registry shared by built-in and ad-hoc commands. The host and the
// extension each own one registry; cross-process execution goes through the
// extension command proxy, not through shared state.
package command

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Handler executes one command with its forwarded arguments.
type Handler func(ctx context.Context, args ...any) (any, error)

// Registry maps command identifiers to handlers.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Handler
	logger   *zap.Logger
}

// NewRegistry creates an empty command registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		commands: make(map[string]Handler),
		logger:   logger.With(zap.String("component", "command-registry")),
	}
}

// Register binds a handler to an id. Re-binding a live id fails; callers
// must Unregister first.
func (r *Registry) Register(id string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[id]; exists {
		return &DuplicateRegistrationError{Command: id}
	}
	r.commands[id] = h

	r.logger.Debug("Command registered", zap.String("command", id))
	return nil
}

// Unregister removes a command binding. Removing an unknown id is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.commands[id]; !ok {
		return
	}
	delete(r.commands, id)

	r.logger.Debug("Command unregistered", zap.String("command", id))
}

// Execute looks the id up and invokes its handler with the forwarded
// arguments, returning the handler's outcome unmodified.
func (r *Registry) Execute(ctx context.Context, id string, args ...any) (any, error) {
	r.mu.RLock()
	h, ok := r.commands[id]
	r.mu.RUnlock()

	if !ok {
		return nil, &UnknownCommandError{Command: id}
	}
	return h(ctx, args...)
}

// Has reports whether a command id is bound.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.commands[id]
	return ok
}

// Count returns the number of registered commands.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.commands)
}
