package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Akshayfx/trader-manager-sub000/internal/usecase"
)

// Server hosts the websocket relay endpoint and the read-only ops surface.
type Server struct {
	router   *usecase.Router
	registry *usecase.Registry
	server   *http.Server
	mux      *http.ServeMux
	upgrader websocket.Upgrader
	logger   *zap.Logger

	startedAt time.Time
}

func NewServer(port int, registry *usecase.Registry, router *usecase.Router, logger *zap.Logger) *Server {
	s := &Server{
		router:   router,
		registry: registry,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Bridges and control apps connect from terminals, not
			// browsers; origin checks add nothing here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:    logger,
		startedAt: time.Now(),
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.mux,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /api/connections", s.handleConnections)
}

func (s *Server) Start() error {
	s.logger.Info("starting relay server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
