package handler

import (
	"bufio"
	"time"

	"ai-casedraft-be/internal/dto"
	"ai-casedraft-be/internal/pkg/logger"
	"ai-casedraft-be/internal/service"
	internalWS "ai-casedraft-be/internal/websocket"
	"ai-casedraft-be/pkg/sse"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	streamBuffer      = 256
	keepAliveInterval = 15 * time.Second
)

// SessionStreamHandler re-publishes session updates to SSE and websocket
// clients.
type SessionStreamHandler struct {
	sessionService service.ISessionService
	hub            *internalWS.Hub
	logger         logger.ILogger
}

func NewSessionStreamHandler(sessionService service.ISessionService, hub *internalWS.Hub, log logger.ILogger) *SessionStreamHandler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &SessionStreamHandler{
		sessionService: sessionService,
		hub:            hub,
		logger:         log,
	}
}

func (h *SessionStreamHandler) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	r.Get("/session/v1/:id/events", auth, h.Events)
	r.Get("/ws", auth, h.ServeWs)
}

// Events streams the session's updates as server-sent events, starting with
// the current snapshot. The stream stays open across runs and edits.
func (h *SessionStreamHandler) Events(c *fiber.Ctx) error {
	sessionId := c.Params("id")
	current, err := h.sessionService.Get(c.Context(), sessionId)
	if err != nil {
		return err
	}

	updates := make(chan dto.SessionUpdate, streamBuffer)
	unsubscribe := h.sessionService.Subscribe(func(u dto.SessionUpdate) {
		if u.SessionId != sessionId {
			return
		}
		select {
		case updates <- u:
		default:
			h.logger.Warn("SessionStream", "Subscriber buffer full, dropping update", map[string]interface{}{
				"session_id": sessionId,
				"kind":       string(u.Kind),
			})
		}
	})

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	snap := current.Snapshot
	first := dto.SessionUpdate{
		SessionId:     current.Id,
		CaseReference: current.CaseReference,
		Kind:          dto.UpdateStage,
		Snapshot:      &snap,
		OccurredAt:    time.Now(),
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()

		enc := sse.NewEncoder(w, sse.GenerationDelimiter)
		if err := enc.Encode(first); err != nil || w.Flush() != nil {
			return
		}

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case u := <-updates:
				if err := enc.Encode(u); err != nil {
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": keepalive" + sse.GenerationDelimiter); err != nil {
					return
				}
			}
			if err := w.Flush(); err != nil {
				h.logger.Debug("SessionStream", "Client went away", map[string]interface{}{"session_id": sessionId})
				return
			}
		}
	})

	return nil
}

// ServeWs upgrades to a websocket that receives the session's updates
// through the hub, including updates produced on other instances.
func (h *SessionStreamHandler) ServeWs(c *fiber.Ctx) error {
	sessionId := c.Query("session_id")
	if sessionId == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session_id is required")
	}
	if _, err := h.sessionService.Get(c.Context(), sessionId); err != nil {
		return err
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("SessionStream", "Starting WebSocket session", map[string]interface{}{"session_id": sessionId})
			internalWS.ServeWs(h.hub, conn, sessionId)
			h.logger.Info("SessionStream", "WebSocket session ended", map[string]interface{}{"session_id": sessionId})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}
