package gateway

import (
	"context"
	"io"

	"github.com/simrailtools/backend-sub003/core/frames"
	"github.com/simrailtools/backend-sub003/feature/livecache"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ArchiveSource streams the most recent archived snapshot dump.
type ArchiveSource interface {
	Latest(ctx context.Context) (io.ReadCloser, error)
}

// Handler exposes the cache over REST and the live WebSocket channel.
type Handler struct {
	cache   *livecache.Cache
	hub     *Hub
	archive ArchiveSource
	log     *zap.Logger
}

// NewHandler creates the gateway HTTP handler. archive may be nil when the
// snapshot archive is disabled.
func NewHandler(cache *livecache.Cache, hub *Hub, archive ArchiveSource, log *zap.Logger) *Handler {
	return &Handler{cache: cache, hub: hub, archive: archive, log: log}
}

// RegisterRoutes registers the gateway routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/v1")
	group.Get("/servers", h.HandleServers)
	group.Get("/servers/:id", h.HandleServer)
	group.Get("/journeys", h.HandleJourneys)
	group.Get("/journeys/:id", h.HandleJourney)
	group.Get("/dispatch-posts", h.HandleDispatchPosts)
	group.Get("/dispatch-posts/:id", h.HandleDispatchPost)
	group.Get("/status", h.HandleStatus)
	group.Get("/archive/latest", h.HandleArchiveLatest)

	group.Use("/live", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	group.Get("/live", websocket.New(h.handleLive))
}

// HandleServers returns all cached servers.
func (h *Handler) HandleServers(c *fiber.Ctx) error {
	return c.JSON(h.cache.Servers())
}

// HandleServer returns one cached server.
func (h *Handler) HandleServer(c *fiber.Ctx) error {
	v, ok := h.cache.Server(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "server not found"})
	}
	return c.JSON(v)
}

// HandleJourneys returns cached journeys, optionally filtered by server.
func (h *Handler) HandleJourneys(c *fiber.Ctx) error {
	return c.JSON(h.cache.Journeys(c.Query("server_id")))
}

// HandleJourney returns one cached journey.
func (h *Handler) HandleJourney(c *fiber.Ctx) error {
	v, ok := h.cache.Journey(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "journey not found"})
	}
	return c.JSON(v)
}

// HandleDispatchPosts returns cached dispatch posts, optionally filtered by
// server.
func (h *Handler) HandleDispatchPosts(c *fiber.Ctx) error {
	return c.JSON(h.cache.DispatchPosts(c.Query("server_id")))
}

// HandleDispatchPost returns one cached dispatch post.
func (h *Handler) HandleDispatchPost(c *fiber.Ctx) error {
	v, ok := h.cache.DispatchPost(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "dispatch post not found"})
	}
	return c.JSON(v)
}

// HandleStatus reports cache sizes and connected client count.
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"cache":    h.cache.Sizes(),
		"sessions": h.hub.SessionCount(),
	})
}

// HandleArchiveLatest streams the most recent archived snapshot dump.
func (h *Handler) HandleArchiveLatest(c *fiber.Ctx) error {
	if h.archive == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "snapshot archive is disabled"})
	}
	obj, err := h.archive.Latest(c.Context())
	if err != nil {
		h.log.Warn("Failed to fetch latest snapshot dump", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "failed to fetch latest snapshot dump"})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendStream(obj)
}

// clientMessage is the inbound subscription protocol of the live channel.
type clientMessage struct {
	Action   string      `json:"action"`
	Kind     frames.Kind `json:"kind"`
	ServerID string      `json:"server_id"`
}

// handleLive runs one client's live session until the socket drops.
func (h *Handler) handleLive(conn *websocket.Conn) {
	session := h.hub.Register(conn)
	defer h.hub.Unregister(session.ID())

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Action {
		case "subscribe":
			session.Subscribe(msg.Kind, msg.ServerID)
		case "unsubscribe":
			session.Unsubscribe(msg.Kind, msg.ServerID)
		default:
			h.log.Debug("Ignoring unknown client action",
				zap.String("session", session.ID()),
				zap.String("action", msg.Action))
		}
	}
}
