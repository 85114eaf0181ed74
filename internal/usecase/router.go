package usecase

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/Akshayfx/trader-manager-sub000/internal/domain"
)

// HandlerFunc processes one inbound envelope from one connection.
// Handler errors mean malformed input; the router replies with an error
// envelope and keeps the connection open.
type HandlerFunc func(ctx context.Context, conn *domain.Connection, env domain.Envelope) error

// BroadcastScope narrows a broadcast. Nil Category means every category;
// empty TenantKey means every tenant in the category.
type BroadcastScope struct {
	Category  *domain.Category
	TenantKey string
}

// Router classifies inbound messages into exactly one handler each and
// fans outbound messages out to categorized connection sets. Delivery is
// fire-and-forget and at-most-once: unwritable transports are skipped,
// nothing is queued or retried.
type Router struct {
	registry *Registry
	logger   *zap.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewRouter(registry *Registry, logger *zap.Logger) *Router {
	return &Router{
		registry: registry,
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers the handler for one message type. One entry per type;
// re-registering replaces the previous handler.
func (rt *Router) Handle(msgType string, fn HandlerFunc) {
	rt.mu.Lock()
	rt.handlers[msgType] = fn
	rt.mu.Unlock()
}

// Dispatch routes one inbound envelope. Unknown connection ids are dropped
// (the connection raced its own disconnect). Unknown message types get an
// error reply and are otherwise ignored; nothing here is fatal to the
// process or to other connections.
func (rt *Router) Dispatch(ctx context.Context, connID string, raw []byte) {
	conn := rt.registry.Get(connID)
	if conn == nil {
		return
	}
	rt.registry.Touch(connID)

	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		rt.replyError(conn, "malformed_envelope", "message is not a typed envelope")
		return
	}

	rt.mu.RLock()
	handler, ok := rt.handlers[env.Type]
	rt.mu.RUnlock()
	if !ok {
		rt.logger.Debug("unknown message type dropped",
			zap.String("type", env.Type),
			zap.String("conn", connID))
		rt.replyError(conn, "unknown_type", "no handler for message type "+env.Type)
		return
	}

	if err := handler(ctx, conn, env); err != nil {
		rt.logger.Warn("handler rejected message",
			zap.String("type", env.Type),
			zap.String("conn", connID),
			zap.Error(err))
		rt.replyError(conn, "bad_request", err.Error())
	}
}

// Broadcast fans env out to the scoped connection set. Iteration is over a
// registry snapshot, so connections unregistering mid-broadcast are
// harmless. Returns the number of transports written to.
func (rt *Router) Broadcast(env domain.Envelope, scope BroadcastScope) int {
	var targets []*domain.Connection
	switch {
	case scope.Category != nil && scope.TenantKey != "":
		targets = rt.registry.Lookup(*scope.Category, scope.TenantKey)
	case scope.Category != nil:
		targets = rt.registry.LookupAll(*scope.Category)
	default:
		targets = rt.registry.All()
	}
	return rt.deliver(env, targets)
}

// SendToBridge routes a command to the tenant group of a bridge category.
// When the tenant key resolves to no connection the command is broadcast to
// the whole category instead: a stale tenant index must not silently
// swallow a trade command.
func (rt *Router) SendToBridge(env domain.Envelope, category domain.Category, tenantKey string) int {
	targets := rt.registry.Lookup(category, tenantKey)
	if len(targets) == 0 {
		rt.logger.Warn("no bridge for tenant key, falling back to category broadcast",
			zap.String("category", string(category)),
			zap.String("tenant", tenantKey))
		targets = rt.registry.LookupAll(category)
	}
	return rt.deliver(env, targets)
}

// SendToControls fans env out to both control categories of one tenant.
func (rt *Router) SendToControls(env domain.Envelope, tenantKey string) int {
	n := rt.deliver(env, rt.registry.Lookup(domain.CategoryControlDesktop, tenantKey))
	n += rt.deliver(env, rt.registry.Lookup(domain.CategoryControlMobile, tenantKey))
	return n
}

// Send writes env to a single connection, fire-and-forget.
func (rt *Router) Send(conn *domain.Connection, env domain.Envelope) {
	rt.deliver(env, []*domain.Connection{conn})
}

func (rt *Router) deliver(env domain.Envelope, targets []*domain.Connection) int {
	delivered := 0
	for _, conn := range targets {
		if !conn.Transport.Writable() {
			rt.logger.Debug("skipping unwritable transport", zap.String("conn", conn.ID))
			continue
		}
		if err := conn.Transport.WriteEnvelope(env); err != nil {
			rt.logger.Debug("broadcast write failed",
				zap.String("conn", conn.ID),
				zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

func (rt *Router) replyError(conn *domain.Connection, code, message string) {
	rt.Send(conn, domain.NewEnvelope(domain.MsgError, domain.ErrorPayload{
		Code:    code,
		Message: message,
	}))
}
