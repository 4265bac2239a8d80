// Package rpc implements the duplex, multiplexed message channel between the
// host and extension endpoints. Calls are correlated by deterministic,
// monotonically increasing ids. Each direction of the transport is FIFO, but
// inbound requests are dispatched to their handlers concurrently, so calls
// with different ids never wait on each other. The Sync barrier is a call to
// a privileged control proxy; its reply is withheld until every request
// received before the barrier has completed.
package rpc

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/lspkit/extbridge/internal/wire"
)

// controlProxy is the reserved proxy id the barrier travels through.
const (
	controlProxy = "$control"
	syncMethod   = "sync"
)

// Handler processes calls addressed to one proxy id.
type Handler interface {
	Invoke(ctx context.Context, method string, params json.RawMessage) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, method string, params json.RawMessage) (any, error)

func (f HandlerFunc) Invoke(ctx context.Context, method string, params json.RawMessage) (any, error) {
	return f(ctx, method, params)
}

type request struct {
	ID     uint64          `json:"id"`
	Proxy  string          `json:"proxy"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Fault  *Fault          `json:"fault,omitempty"`
}

// envelope is the single frame shape carried by the transport.
type envelope struct {
	Request  *request  `json:"request,omitempty"`
	Response *response `json:"response,omitempty"`
}

// Endpoint is one logical side of the channel. Proxies registered on an
// endpoint serve calls arriving from the peer; Invoke issues calls to
// proxies registered on the peer.
type Endpoint struct {
	name      string
	transport Transport
	logger    *zap.Logger

	mu      sync.RWMutex
	proxies map[string]Handler

	nextID  atomic.Uint64
	pendMu  sync.Mutex
	pending map[uint64]chan *response

	inbound *inflight

	done      chan struct{}
	closeOnce sync.Once
}

// inflight tracks dispatched inbound requests so the sync barrier can wait
// for exactly the requests received before it.
type inflight struct {
	mu   sync.Mutex
	next uint64
	open map[uint64]chan struct{}
}

func newInflight() *inflight {
	return &inflight{open: make(map[uint64]chan struct{})}
}

// begin registers a dispatched request and returns its completion callback.
func (f *inflight) begin() func() {
	f.mu.Lock()
	seq := f.next
	f.next++
	done := make(chan struct{})
	f.open[seq] = done
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.open, seq)
		f.mu.Unlock()
		close(done)
	}
}

// snapshot returns the completion channels of every request begun and not
// yet finished.
func (f *inflight) snapshot() []chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	chans := make([]chan struct{}, 0, len(f.open))
	for _, done := range f.open {
		chans = append(chans, done)
	}
	return chans
}

// NewEndpoint creates an endpoint over the given transport. Start must be
// called before the endpoint serves or receives anything.
func NewEndpoint(name string, transport Transport, logger *zap.Logger) *Endpoint {
	return &Endpoint{
		name:      name,
		transport: transport,
		logger:    logger.With(zap.String("component", "rpc-endpoint"), zap.String("endpoint", name)),
		proxies:   make(map[string]Handler),
		pending:   make(map[uint64]chan *response),
		inbound:   newInflight(),
		done:      make(chan struct{}),
	}
}

// RegisterProxy binds a handler to a proxy id. Later registrations replace
// earlier ones; proxy identity is part of the deployment wiring, not a
// user-facing namespace.
func (e *Endpoint) RegisterProxy(id string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.proxies[id] = h
}

// Start begins processing inbound frames. The given context is the parent of
// every handler invocation.
func (e *Endpoint) Start(ctx context.Context) {
	go e.readLoop(ctx)
}

// Invoke issues a call to a proxy on the peer endpoint and blocks until the
// reply arrives. params must already be transport-safe. The channel never
// retries; a fault is surfaced to the caller as a typed error.
func (e *Endpoint) Invoke(ctx context.Context, proxy, method string, params any) (json.RawMessage, error) {
	select {
	case <-e.done:
		return nil, &ChannelClosedError{Endpoint: e.name}
	default:
	}

	raw, err := wire.Marshal(params)
	if err != nil {
		return nil, &wire.EncodeError{Kind: method, Err: err}
	}

	id := e.nextID.Add(1)
	ch := make(chan *response, 1)
	e.pendMu.Lock()
	e.pending[id] = ch
	e.pendMu.Unlock()

	frame, err := wire.Marshal(envelope{Request: &request{ID: id, Proxy: proxy, Method: method, Params: raw}})
	if err != nil {
		e.forget(id)
		return nil, err
	}
	if err := e.transport.Send(frame); err != nil {
		e.forget(id)
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Fault != nil {
			return nil, faultToError(resp.Fault)
		}
		return resp.Result, nil
	case <-ctx.Done():
		e.forget(id)
		return nil, ctx.Err()
	case <-e.done:
		return nil, &ChannelClosedError{Endpoint: e.name}
	}
}

// Sync flushes every message in flight on both directions before returning.
// It is a round-trip through the peer's control proxy: the peer withholds
// the barrier reply until every request it received before the barrier has
// completed, and any request the peer sent before replying was dispatched
// here before the reply was delivered, so a final wait on local inbound
// work covers the other direction.
func (e *Endpoint) Sync(ctx context.Context) error {
	if _, err := e.Invoke(ctx, controlProxy, syncMethod, nil); err != nil {
		return err
	}
	if !e.awaitAll(ctx, e.inbound.snapshot()) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return &ChannelClosedError{Endpoint: e.name}
		}
	}
	return nil
}

// Close shuts the endpoint down and fails every pending call.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)
		e.transport.Close()
		e.failPending()
	})
	return nil
}

func (e *Endpoint) readLoop(ctx context.Context) {
	for {
		frame, err := e.transport.Receive()
		if err != nil {
			e.logger.Debug("Transport drained", zap.Error(err))
			e.Close()
			return
		}

		var env envelope
		if err := wire.Unmarshal(frame, &env); err != nil {
			e.logger.Warn("Dropping malformed frame", zap.Error(err))
			continue
		}

		switch {
		case env.Response != nil:
			e.deliver(env.Response)
		case env.Request != nil:
			e.dispatch(ctx, env.Request)
		}
	}
}

// dispatch hands an inbound request to its handler on its own goroutine, so
// requests with different ids proceed independently. The barrier snapshots
// the requests dispatched before it; requests arriving after the barrier
// are not in the snapshot and never delay it.
func (e *Endpoint) dispatch(ctx context.Context, req *request) {
	if req.Proxy == controlProxy && req.Method == syncMethod {
		earlier := e.inbound.snapshot()
		go func() {
			if e.awaitAll(ctx, earlier) {
				e.reply(&response{ID: req.ID})
			}
		}()
		return
	}

	finish := e.inbound.begin()
	go func() {
		defer finish()
		e.handle(ctx, req)
	}()
}

// awaitAll waits for the given completions; false means the endpoint closed
// or the context ended first.
func (e *Endpoint) awaitAll(ctx context.Context, chans []chan struct{}) bool {
	for _, done := range chans {
		select {
		case <-done:
		case <-ctx.Done():
			return false
		case <-e.done:
			return false
		}
	}
	return true
}

func (e *Endpoint) handle(ctx context.Context, req *request) {
	e.mu.RLock()
	h, ok := e.proxies[req.Proxy]
	e.mu.RUnlock()
	if !ok {
		e.logger.Warn("Call to unregistered proxy",
			zap.String("proxy", req.Proxy),
			zap.String("method", req.Method),
		)
		e.reply(&response{ID: req.ID, Fault: errorToFault(req.Method, &NotFoundError{Proxy: req.Proxy, Method: req.Method})})
		return
	}

	result, err := h.Invoke(ctx, req.Method, req.Params)
	if err != nil {
		e.reply(&response{ID: req.ID, Fault: errorToFault(req.Method, err)})
		return
	}

	raw, err := wire.Marshal(result)
	if err != nil {
		e.reply(&response{ID: req.ID, Fault: errorToFault(req.Method, err)})
		return
	}
	e.reply(&response{ID: req.ID, Result: raw})
}

func (e *Endpoint) reply(resp *response) {
	frame, err := wire.Marshal(envelope{Response: resp})
	if err != nil {
		e.logger.Error("Failed to marshal reply", zap.Uint64("id", resp.ID), zap.Error(err))
		return
	}
	if err := e.transport.Send(frame); err != nil {
		e.logger.Warn("Failed to send reply", zap.Uint64("id", resp.ID), zap.Error(err))
	}
}

func (e *Endpoint) deliver(resp *response) {
	e.pendMu.Lock()
	ch, ok := e.pending[resp.ID]
	delete(e.pending, resp.ID)
	e.pendMu.Unlock()
	if !ok {
		e.logger.Warn("Reply with unknown correlation id", zap.Uint64("id", resp.ID))
		return
	}
	ch <- resp
}

func (e *Endpoint) forget(id uint64) {
	e.pendMu.Lock()
	delete(e.pending, id)
	e.pendMu.Unlock()
}

func (e *Endpoint) failPending() {
	e.pendMu.Lock()
	defer e.pendMu.Unlock()
	for id, ch := range e.pending {
		ch <- &response{ID: id, Fault: &Fault{Kind: FaultExecution, Message: "channel closed"}}
		delete(e.pending, id)
	}
}
