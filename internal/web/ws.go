package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Akshayfx/trader-manager-sub000/internal/domain"
)

const (
	writeTimeout = 5 * time.Second

	headerCategory = "X-Client-Category"
	headerMagicKey = "X-Magic-Key"
)

// wsTransport adapts one gorilla connection to domain.Transport. Writes
// are serialized by a mutex and fire-and-forget: a failed write marks the
// transport dead and is never retried.
type wsTransport struct {
	conn *websocket.Conn

	mu   sync.Mutex
	dead bool
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) WriteEnvelope(env domain.Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead {
		return websocket.ErrCloseSent
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := t.conn.WriteJSON(env); err != nil {
		t.dead = true
		return err
	}
	return nil
}

func (t *wsTransport) Writable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.dead
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	t.dead = true
	t.mu.Unlock()
	return t.conn.Close()
}

// handleWS upgrades the client, registers it under its handshake category
// and magic key, and pumps inbound messages into the router. One reader
// goroutine per connection; a failing connection only takes itself down.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	category, ok := domain.ParseCategory(headerOrQuery(r, headerCategory, "category"))
	if !ok {
		http.Error(w, "unknown client category", http.StatusBadRequest)
		return
	}
	tenantKey := domain.NormalizeTenantKey(headerOrQuery(r, headerMagicKey, "key"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	transport := newWSTransport(conn)
	id := uuid.NewString()
	s.registry.Register(&domain.Connection{
		ID:        id,
		Category:  category,
		TenantKey: tenantKey,
		Transport: transport,
	})

	defer func() {
		s.registry.Unregister(id)
		_ = transport.Close()
	}()

	conn.SetPongHandler(func(string) error {
		s.registry.Touch(id)
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.logger.Debug("connection read ended",
				zap.String("id", id),
				zap.Error(err))
			return
		}
		s.router.Dispatch(context.Background(), id, raw)
	}
}

// headerOrQuery reads a handshake value from the header, falling back to a
// query parameter for clients that cannot set custom headers.
func headerOrQuery(r *http.Request, header, query string) string {
	if v := r.Header.Get(header); v != "" {
		return v
	}
	return r.URL.Query().Get(query)
}
