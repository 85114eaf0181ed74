package usecase

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Akshayfx/trader-manager-sub000/internal/domain"
)

// Registry owns every live connection and the categorized lookup indices
// over them. It is the single writer of connection lifecycle state; all
// lookups return snapshots that stay valid while concurrent registers and
// unregisters proceed.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]*domain.Connection
	byCat    map[domain.Category]map[string]*domain.Connection
	byTenant map[domain.Category]map[string]map[string]*domain.Connection

	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		byID:     make(map[string]*domain.Connection),
		byCat:    make(map[domain.Category]map[string]*domain.Connection),
		byTenant: make(map[domain.Category]map[string]map[string]*domain.Connection),
		logger:   logger,
	}
}

// Register adds a connection under its category and tenant key. Registering
// an id that is already present replaces the previous entry in every index,
// so repeated handshakes for the same id cannot duplicate it.
func (r *Registry) Register(conn *domain.Connection) string {
	conn.TenantKey = domain.NormalizeTenantKey(conn.TenantKey)
	conn.LastSeen = time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byID[conn.ID]; ok {
		r.removeLocked(old)
	}

	r.byID[conn.ID] = conn

	if r.byCat[conn.Category] == nil {
		r.byCat[conn.Category] = make(map[string]*domain.Connection)
	}
	r.byCat[conn.Category][conn.ID] = conn

	if r.byTenant[conn.Category] == nil {
		r.byTenant[conn.Category] = make(map[string]map[string]*domain.Connection)
	}
	if r.byTenant[conn.Category][conn.TenantKey] == nil {
		r.byTenant[conn.Category][conn.TenantKey] = make(map[string]*domain.Connection)
	}
	r.byTenant[conn.Category][conn.TenantKey][conn.ID] = conn

	r.logger.Info("connection registered",
		zap.String("id", conn.ID),
		zap.String("category", string(conn.Category)),
		zap.String("tenant", conn.TenantKey))

	return conn.ID
}

// Unregister removes a connection from every index. Unknown ids are a
// no-op: transports deliver duplicate disconnect notifications and the
// sweep loop races normal closes.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	conn, ok := r.byID[id]
	if ok {
		r.removeLocked(conn)
	}
	r.mu.Unlock()

	if ok {
		r.logger.Info("connection unregistered",
			zap.String("id", id),
			zap.String("category", string(conn.Category)),
			zap.String("tenant", conn.TenantKey))
	}
}

// removeLocked deletes conn from all three indices and prunes the tenant
// sub-map if it became empty. Caller holds the write lock.
func (r *Registry) removeLocked(conn *domain.Connection) {
	delete(r.byID, conn.ID)
	if cat := r.byCat[conn.Category]; cat != nil {
		delete(cat, conn.ID)
		if len(cat) == 0 {
			delete(r.byCat, conn.Category)
		}
	}
	if tenants := r.byTenant[conn.Category]; tenants != nil {
		if group := tenants[conn.TenantKey]; group != nil {
			delete(group, conn.ID)
			if len(group) == 0 {
				delete(tenants, conn.TenantKey)
			}
		}
		if len(tenants) == 0 {
			delete(r.byTenant, conn.Category)
		}
	}
}

// Get returns the connection for an id, or nil.
func (r *Registry) Get(id string) *domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// Lookup returns a snapshot of the tenant group for (category, tenantKey).
func (r *Registry) Lookup(category domain.Category, tenantKey string) []*domain.Connection {
	tenantKey = domain.NormalizeTenantKey(tenantKey)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tenants := r.byTenant[category]; tenants != nil {
		return snapshot(tenants[tenantKey])
	}
	return nil
}

// LookupAll returns a snapshot of every connection in a category.
func (r *Registry) LookupAll(category domain.Category) []*domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.byCat[category])
}

// All returns a snapshot of every registered connection.
func (r *Registry) All() []*domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.byID)
}

// Counts returns the number of live connections per category.
func (r *Registry) Counts() map[domain.Category]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[domain.Category]int, len(r.byCat))
	for cat, set := range r.byCat {
		counts[cat] = len(set)
	}
	return counts
}

// Touch refreshes the liveness timestamp for an id.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	if conn, ok := r.byID[id]; ok {
		conn.LastSeen = time.Now()
	}
	r.mu.Unlock()
}

// UpdateAccount stores the latest account snapshot for an id and refreshes
// liveness.
func (r *Registry) UpdateAccount(id string, snap domain.AccountSnapshot) {
	r.mu.Lock()
	if conn, ok := r.byID[id]; ok {
		conn.Account = snap
		conn.LastSeen = time.Now()
	}
	r.mu.Unlock()
}

// Sweep unregisters every connection whose last liveness signal is older
// than maxIdle and returns the evicted connections. This is the only
// time-based eviction in the core.
func (r *Registry) Sweep(maxIdle time.Duration) []*domain.Connection {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	var evicted []*domain.Connection
	for _, conn := range r.byID {
		if conn.LastSeen.Before(cutoff) {
			evicted = append(evicted, conn)
		}
	}
	for _, conn := range evicted {
		r.removeLocked(conn)
	}
	r.mu.Unlock()

	for _, conn := range evicted {
		r.logger.Warn("connection evicted by liveness sweep",
			zap.String("id", conn.ID),
			zap.String("category", string(conn.Category)),
			zap.String("tenant", conn.TenantKey))
		_ = conn.Transport.Close()
	}
	return evicted
}

func snapshot(set map[string]*domain.Connection) []*domain.Connection {
	if len(set) == 0 {
		return nil
	}
	out := make([]*domain.Connection, 0, len(set))
	for _, conn := range set {
		out = append(out, conn)
	}
	return out
}
