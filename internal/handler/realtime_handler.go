package handler

import (
	"prawnik-web/internal/dto"
	"prawnik-web/internal/pkg/logger"
	"prawnik-web/internal/pkg/serverutils"
	"prawnik-web/internal/session"
	internalWS "prawnik-web/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Snapshots provides the counters a freshly connected page starts from.
type Snapshots interface {
	ActiveQueries(s *session.State) dto.ActiveQueriesState
	RateLimit(s *session.State) dto.RateLimitState
}

type RealtimeHandler struct {
	hub       *internalWS.Hub
	snapshots Snapshots
	logger    logger.ILogger
}

func NewRealtimeHandler(hub *internalWS.Hub, snapshots Snapshots, log logger.ILogger) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, snapshots: snapshots, logger: log}
}

func (h *RealtimeHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/ws", h.ServeWs)
}

// ServeWs upgrades the request of a signed-in session. Events of that
// session reach every tab it has open.
func (h *RealtimeHandler) ServeWs(c *fiber.Ctx) error {
	state, err := serverutils.MustSession(c)
	if err != nil {
		return err
	}
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	initial := []internalWS.Envelope{
		{Type: dto.EventActiveQueries, Data: h.snapshots.ActiveQueries(state)},
		{Type: dto.EventRateLimit, Data: h.snapshots.RateLimit(state)},
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("RealtimeHandler", "Starting WebSocket session", map[string]interface{}{"session_id": state.ID})
		internalWS.ServeWs(h.hub, conn, state.ID, initial...)
		h.logger.Info("RealtimeHandler", "WebSocket session ended", map[string]interface{}{"session_id": state.ID})
	})(c)
}
