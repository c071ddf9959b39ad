package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"carbon-scribe/verification-engine/internal/notifications"
)

// ErrManagerStopped is returned by HandleConnection after Stop
var ErrManagerStopped = errors.New("websocket manager stopped")

// Manager keeps a two-way index between clients and the subjects they follow and
// routes subject events to the matching clients.
type Manager struct {
	mu       sync.RWMutex
	clients  map[*Client]map[string]struct{}
	subjects map[string]map[*Client]struct{}
	stopped  bool

	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewManager creates a new WebSocket manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		clients:  make(map[*Client]map[string]struct{}),
		subjects: make(map[string]map[*Client]struct{}),
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// HandleConnection upgrades the request and follows every "subject" query value
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request) (*Client, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Client{
		ID:         uuid.NewString(),
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		conn:       conn,
		send:       make(chan notifications.WebSocketMessage, sendBuffer),
	}
	c.touch()

	if !m.add(c, r.URL.Query()["subject"]) {
		conn.Close()
		return nil, ErrManagerStopped
	}
	m.logger.Debug("Client connected", zap.String("client_id", c.ID), zap.String("remote_addr", c.RemoteAddr))

	go c.writeLoop()
	go c.readLoop(m)
	return c, nil
}

func (m *Manager) add(c *Client, subjects []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return false
	}
	m.clients[c] = make(map[string]struct{})
	for _, s := range subjects {
		m.followLocked(c, s)
	}
	return true
}

// remove detaches c from every subject and closes its send channel once
func (m *Manager) remove(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	followed, ok := m.clients[c]
	if !ok {
		return
	}
	for s := range followed {
		m.unfollowLocked(c, s)
	}
	delete(m.clients, c)
	close(c.send)
	m.logger.Debug("Client disconnected", zap.String("client_id", c.ID))
}

func (m *Manager) followLocked(c *Client, subjectID string) {
	if subjectID == "" {
		return
	}
	m.clients[c][subjectID] = struct{}{}
	set, ok := m.subjects[subjectID]
	if !ok {
		set = make(map[*Client]struct{})
		m.subjects[subjectID] = set
	}
	set[c] = struct{}{}
}

func (m *Manager) unfollowLocked(c *Client, subjectID string) {
	delete(m.clients[c], subjectID)
	if set, ok := m.subjects[subjectID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(m.subjects, subjectID)
		}
	}
}

// handleRequest applies a subscribe or unsubscribe request and acknowledges it
func (m *Manager) handleRequest(c *Client, req notifications.WebSocketMessage) {
	if req.Target == "" {
		return
	}

	var status string
	switch req.Type {
	case notifications.WSMessageTypeSubscribe:
		status = "subscribed"
	case notifications.WSMessageTypeUnsubscribe:
		status = "unsubscribed"
	default:
		m.logger.Debug("Ignoring client message", zap.String("type", req.Type))
		return
	}

	m.mu.Lock()
	if _, ok := m.clients[c]; ok {
		if req.Type == notifications.WSMessageTypeSubscribe {
			m.followLocked(c, req.Target)
		} else {
			m.unfollowLocked(c, req.Target)
		}
	}
	m.mu.Unlock()

	ack, _ := json.Marshal(map[string]string{"status": status, "client_id": c.ID})
	m.deliver(c, notifications.WebSocketMessage{
		Type:      notifications.WSMessageTypeStatus,
		Data:      datatypes.JSON(ack),
		Timestamp: time.Now().UTC(),
		Channel:   "client",
		Target:    req.Target,
	})
}

// deliver queues msg for one client if it is still attached
func (m *Manager) deliver(c *Client, msg notifications.WebSocketMessage) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.clients[c]; !ok {
		return false
	}
	return m.enqueue(c, msg)
}

// enqueue must be called with mu held; a full buffer drops the message
func (m *Manager) enqueue(c *Client, msg notifications.WebSocketMessage) bool {
	select {
	case c.send <- msg:
		return true
	default:
		m.logger.Warn("Client buffer full, dropping message", zap.String("client_id", c.ID))
		return false
	}
}

// SendToSubject queues msg for every client following subjectID and returns how many
// accepted it.
func (m *Manager) SendToSubject(subjectID string, msg notifications.WebSocketMessage) int {
	msg.Target = subjectID
	msg.Channel = "subject"

	m.mu.RLock()
	defer m.mu.RUnlock()

	sent := 0
	for c := range m.subjects[subjectID] {
		if m.enqueue(c, msg) {
			sent++
		}
	}
	return sent
}

// Publish implements notifications.Publisher. A subject without followers is not an error.
func (m *Manager) Publish(ctx context.Context, event notifications.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	m.SendToSubject(event.SubjectID, notifications.WebSocketMessage{
		Type:      notifications.WSMessageTypeEvent,
		Data:      datatypes.JSON(data),
		Timestamp: event.Timestamp,
	})
	return nil
}

// GetConnectionCount returns the number of attached clients
func (m *Manager) GetConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// GetSubjectConnections returns the number of clients following subjectID
func (m *Manager) GetSubjectConnections(subjectID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subjects[subjectID])
}

// Stop detaches every client; their write loops send a close frame and exit
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	for c := range m.clients {
		close(c.send)
	}
	m.clients = make(map[*Client]map[string]struct{})
	m.subjects = make(map[string]map[*Client]struct{})
}
