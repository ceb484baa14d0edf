package gateway

import (
	"sync"

	"github.com/simrailtools/backend-sub003/core/frames"
	"github.com/simrailtools/backend-sub003/feature/livecache"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sessionConn is the outbound primitive a client session writes to. The
// contrib websocket connection satisfies it; tests plug in fakes.
type sessionConn interface {
	WriteJSON(v any) error
	Close() error
}

// OutboundMessage is the tagged payload sent to downstream clients.
type OutboundMessage struct {
	Kind       frames.Kind       `json:"kind"`
	UpdateType frames.UpdateType `json:"update_type"`
	Data       any               `json:"data"`
}

// subKey is the composite registration key: entity kind plus owning server.
// An empty server id registers for the kind across all servers.
type subKey struct {
	kind     frames.Kind
	serverID string
}

// Session is one connected downstream client.
type Session struct {
	id   string
	conn sessionConn
	out  chan OutboundMessage

	mu     sync.RWMutex
	subs   map[subKey]struct{}
	closed bool
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Subscribe registers interest in a kind, optionally scoped to one server.
func (s *Session) Subscribe(kind frames.Kind, serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[subKey{kind: kind, serverID: serverID}] = struct{}{}
}

// Unsubscribe removes a registration.
func (s *Session) Unsubscribe(kind frames.Kind, serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, subKey{kind: kind, serverID: serverID})
}

// hasRegistration decides membership for a frame via its composite key.
func (s *Session) hasRegistration(f frames.Frame) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.subs[subKey{kind: f.FrameKind()}]; ok {
		return true
	}
	_, ok := s.subs[subKey{kind: f.FrameKind(), serverID: f.ScopeServerID()}]
	return ok
}

// trySend enqueues a message without blocking. The session lock excludes a
// concurrent close, so the channel is never written after closing. Returns
// false only when the session is alive but its buffer is full.
func (s *Session) trySend(msg OutboundMessage) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return true
	}
	select {
	case s.out <- msg:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
}

// Hub fans applied cache frames out to the registered client sessions.
type Hub struct {
	log    *zap.Logger
	buffer int

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewHub creates the fan-out hub and attaches it to the cache.
func NewHub(cache *livecache.Cache, log *zap.Logger) *Hub {
	h := &Hub{
		log:      log,
		buffer:   64,
		sessions: make(map[string]*Session),
	}
	cache.AddListener(h.onEvent)
	return h
}

// Register creates a session for a connected client and starts its writer.
func (h *Hub) Register(conn sessionConn) *Session {
	s := &Session{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan OutboundMessage, h.buffer),
		subs: make(map[subKey]struct{}),
	}
	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()

	go h.writeLoop(s)
	h.log.Info("Client session registered", zap.String("session", s.id))
	return s
}

// Unregister drops a session and closes its connection.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		return
	}
	s.close()
	_ = s.conn.Close()
	h.log.Info("Client session unregistered", zap.String("session", id))
}

// SessionCount reports the number of connected clients.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// onEvent renders and forwards one applied frame to every matching session.
func (h *Hub) onEvent(ev livecache.Event) {
	if !ev.Applied {
		return
	}

	msg := OutboundMessage{
		Kind:       ev.Frame.FrameKind(),
		UpdateType: ev.Frame.FrameType(),
	}
	switch ev.Frame.FrameType() {
	case frames.UpdateTypeAdd:
		// Full snapshot: a late joiner gets complete state, not a diff.
		if ev.Snapshot == nil {
			return
		}
		msg.Data = ev.Snapshot
	default:
		msg.Data = ev.Frame
	}

	h.mu.RLock()
	matched := make([]*Session, 0)
	for _, s := range h.sessions {
		if s.hasRegistration(ev.Frame) {
			matched = append(matched, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range matched {
		if !s.trySend(msg) {
			// Fire-and-forget: a client that cannot keep up is dropped
			// so it never stalls delivery to the others.
			h.log.Warn("Dropping slow client session", zap.String("session", s.id))
			h.Unregister(s.id)
		}
	}
}

// writeLoop is the session's single writer; send failures only ever affect
// this one session.
func (h *Hub) writeLoop(s *Session) {
	for msg := range s.out {
		if err := s.conn.WriteJSON(msg); err != nil {
			h.log.Debug("Client write failed",
				zap.String("session", s.id),
				zap.Error(err))
			h.Unregister(s.id)
			for range s.out {
			}
			return
		}
	}
}
