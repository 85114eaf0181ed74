package web

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Akshayfx/trader-manager-sub000/internal/domain"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts := s.registry.Counts()
	payload := map[string]interface{}{
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"categories":     map[string]int{},
	}
	categories := payload["categories"].(map[string]int)
	for _, category := range domain.Categories {
		categories[string(category)] = counts[category]
	}
	s.writeJSON(w, payload)
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	type connView struct {
		ID        string  `json:"id"`
		Category  string  `json:"category"`
		TenantKey string  `json:"tenant_key"`
		Balance   float64 `json:"balance"`
		LastSeen  string  `json:"last_seen"`
	}

	var views []connView
	for _, conn := range s.registry.All() {
		views = append(views, connView{
			ID:        conn.ID,
			Category:  string(conn.Category),
			TenantKey: conn.TenantKey,
			Balance:   conn.Account.Balance,
			LastSeen:  conn.LastSeen.UTC().Format(time.RFC3339),
		})
	}
	s.writeJSON(w, views)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}
