package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/simrailtools/backend-sub003/core/frames"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	eventbus "github.com/jilio/ebu"
	"go.uber.org/zap"
)

// Server publishes the collector's frames over one WebSocket stream per
// entity kind.
type Server struct {
	log      *zap.Logger
	addr     string
	buffer   int
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[frames.Kind]map[string]*session

	httpServer *http.Server
}

// session is one attached subscriber stream.
type session struct {
	id   string
	conn *websocket.Conn
	out  chan frames.Envelope
	once sync.Once
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.out)
	})
}

// NewServer creates the stream server and attaches it to the event bus.
func NewServer(bus *eventbus.EventBus, log *zap.Logger, cfg Config) *Server {
	buffer := cfg.SessionBuffer
	if buffer <= 0 {
		buffer = 256
	}
	s := &Server{
		log:      log,
		addr:     cfg.ListenAddr,
		buffer:   buffer,
		sessions: make(map[frames.Kind]map[string]*session),
	}
	for _, kind := range frames.Kinds() {
		s.sessions[kind] = make(map[string]*session)
	}

	eventbus.Subscribe(bus, func(f frames.ServerFrame) {
		s.broadcast(f)
	})
	eventbus.Subscribe(bus, func(f frames.JourneyFrame) {
		s.broadcast(f)
	})
	eventbus.Subscribe(bus, func(f frames.DispatchPostFrame) {
		s.broadcast(f)
	})
	return s
}

// Handler returns the HTTP handler serving the per-kind stream routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, kind := range frames.Kinds() {
		kind := kind
		mux.HandleFunc("/v1/streams/"+string(kind), func(w http.ResponseWriter, r *http.Request) {
			s.handleStream(kind, w, r)
		})
	}
	return mux
}

// Start serves the streams on the configured address until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Frame stream server listening", zap.String("addr", s.addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("stream server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return nil
	}
}

func (s *Server) handleStream(kind frames.Kind, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Stream upgrade failed", zap.Error(err))
		return
	}

	sess := &session{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan frames.Envelope, s.buffer),
	}

	s.mu.Lock()
	s.sessions[kind][sess.id] = sess
	s.mu.Unlock()
	s.log.Info("Stream subscriber attached",
		zap.String("kind", string(kind)),
		zap.String("session", sess.id))

	go s.writeLoop(kind, sess)
	s.readLoop(kind, sess)
}

// writeLoop is the session's single writer; it preserves publish order.
func (s *Server) writeLoop(kind frames.Kind, sess *session) {
	for env := range sess.out {
		if err := sess.conn.WriteJSON(env); err != nil {
			s.log.Debug("Stream write failed, detaching subscriber",
				zap.String("session", sess.id),
				zap.Error(err))
			s.detach(kind, sess)
			// Drain so broadcast never blocks on this session.
			for range sess.out {
			}
			return
		}
	}
	_ = sess.conn.Close()
}

// readLoop consumes (and discards) client messages to notice disconnects.
func (s *Server) readLoop(kind frames.Kind, sess *session) {
	for {
		if _, _, err := sess.conn.ReadMessage(); err != nil {
			s.detach(kind, sess)
			return
		}
	}
}

// broadcast hands the frame to every session of its kind. A session whose
// buffer is full is detached: it will reconnect and resync instead of
// silently lagging.
func (s *Server) broadcast(f frames.Frame) {
	env, err := frames.Wrap(f)
	if err != nil {
		s.log.Error("Dropping unencodable frame", zap.Error(err))
		return
	}

	kind := f.FrameKind()
	s.mu.Lock()
	stale := make([]*session, 0)
	for _, sess := range s.sessions[kind] {
		select {
		case sess.out <- env:
		default:
			stale = append(stale, sess)
		}
	}
	for _, sess := range stale {
		delete(s.sessions[kind], sess.id)
	}
	s.mu.Unlock()

	for _, sess := range stale {
		s.log.Warn("Disconnecting slow stream subscriber",
			zap.String("kind", string(kind)),
			zap.String("session", sess.id))
		sess.close()
		_ = sess.conn.Close()
	}
}

func (s *Server) detach(kind frames.Kind, sess *session) {
	s.mu.Lock()
	_, attached := s.sessions[kind][sess.id]
	delete(s.sessions[kind], sess.id)
	s.mu.Unlock()

	if attached {
		sess.close()
		_ = sess.conn.Close()
		s.log.Info("Stream subscriber detached",
			zap.String("kind", string(kind)),
			zap.String("session", sess.id))
	}
}

// SessionCount reports the attached subscribers for a kind.
func (s *Server) SessionCount(kind frames.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions[kind])
}
