package notification

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jeromwolf/FluxNews/pkg/logger"
	"github.com/jeromwolf/FluxNews/pkg/metrics"
)

const pingInterval = 30 * time.Second

// Channel is a live delivery transport for one user, typically a
// websocket. Send must be safe to call from the dispatch loop and the
// ping loop concurrently.
type Channel interface {
	Send(payload []byte) error
	Close() error
}

// Registry tracks at most one live channel per user. A new connection
// for a user replaces the old one; the old channel is closed.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connection

	metrics *metrics.Metrics
	logger  *logger.Logger

	wg sync.WaitGroup
}

type connection struct {
	ch          Channel
	connectedAt time.Time
	lastPing    time.Time
}

func NewRegistry(m *metrics.Metrics, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		conns:   make(map[string]*connection),
		metrics: m,
		logger:  log,
	}
}

// Connect registers the channel for the user. If the user already has
// a connection it is closed and replaced; last connection wins.
func (r *Registry) Connect(userID string, ch Channel) {
	now := time.Now()
	r.mu.Lock()
	if old, ok := r.conns[userID]; ok {
		_ = old.ch.Close()
	}
	r.conns[userID] = &connection{ch: ch, connectedAt: now, lastPing: now}
	count := len(r.conns)
	r.mu.Unlock()

	r.logger.Info("client connected", "user_id", userID, "connected", count)
	if r.metrics != nil {
		r.metrics.ConnectedClients.Set(float64(count))
	}
}

// Disconnect removes and closes the user's channel if present.
func (r *Registry) Disconnect(userID string) {
	r.mu.Lock()
	conn, ok := r.conns[userID]
	if ok {
		delete(r.conns, userID)
	}
	count := len(r.conns)
	r.mu.Unlock()

	if !ok {
		return
	}
	_ = conn.ch.Close()
	r.logger.Info("client disconnected", "user_id", userID, "connected", count)
	if r.metrics != nil {
		r.metrics.ConnectedClients.Set(float64(count))
	}
}

// Send delivers the message to the user's live channel. Returns false
// if the user is offline. A failed write evicts the connection so the
// registry never accumulates dead channels.
func (r *Registry) Send(userID string, message any) bool {
	payload, err := json.Marshal(message)
	if err != nil {
		r.logger.Error(err, "marshaling message", "user_id", userID)
		return false
	}

	r.mu.RLock()
	conn, ok := r.conns[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	if err := conn.ch.Send(payload); err != nil {
		r.logger.Warn("send failed, evicting connection",
			"user_id", userID, "error", err.Error())
		r.Disconnect(userID)
		return false
	}
	return true
}

// Broadcast sends the message to the given users, or to every
// connected user when none are given. Returns the user IDs whose
// delivery failed or who were offline.
func (r *Registry) Broadcast(message any, userIDs ...string) []string {
	if len(userIDs) == 0 {
		userIDs = r.Online()
	}
	var failed []string
	for _, id := range userIDs {
		if !r.Send(id, message) {
			failed = append(failed, id)
		}
	}
	return failed
}

// IsOnline reports whether the user has a live channel.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

// Online returns the currently connected user IDs.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// Ack records liveness for the user, normally from a pong frame.
func (r *Registry) Ack(userID string) {
	r.mu.Lock()
	if conn, ok := r.conns[userID]; ok {
		conn.lastPing = time.Now()
	}
	r.mu.Unlock()
}

// Start launches the keepalive loop. Pings are advisory: a failed ping
// evicts through the same path as a failed send, but connections are
// never evicted on staleness alone.
func (r *Registry) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.pingAll()
			}
		}
	}()
}

// Wait blocks until the keepalive loop has exited.
func (r *Registry) Wait() {
	r.wg.Wait()
}

func (r *Registry) pingAll() {
	ping := map[string]any{
		"type":      "ping",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for _, id := range r.Online() {
		r.Send(id, ping)
	}
}

// RegistryStats summarizes connection state for the stats endpoint.
type RegistryStats struct {
	Connected int                   `json:"connected"`
	Users     map[string]UserStatus `json:"users"`
}

type UserStatus struct {
	ConnectedAt time.Time `json:"connected_at"`
	LastPing    time.Time `json:"last_ping"`
}

func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make(map[string]UserStatus, len(r.conns))
	for id, conn := range r.conns {
		users[id] = UserStatus{ConnectedAt: conn.connectedAt, LastPing: conn.lastPing}
	}
	return RegistryStats{Connected: len(r.conns), Users: users}
}
