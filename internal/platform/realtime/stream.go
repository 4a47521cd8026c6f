package realtime

import (
	"fmt"
	"net/http"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/telemon/telemon/internal/platform/auth"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// StreamHandler exposes the acting clinician's topic over SSE and WebSocket.
type StreamHandler struct {
	hub       *Hub
	logger    zerolog.Logger
	heartbeat time.Duration
	upgrader  gorillawebsocket.Upgrader
}

// NewStreamHandler creates a handler. Empty origins accepts any WebSocket
// origin.
func NewStreamHandler(hub *Hub, origins []string, logger zerolog.Logger) *StreamHandler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &StreamHandler{
		hub:       hub,
		logger:    logger,
		heartbeat: 25 * time.Second,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

func (h *StreamHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications/stream", h.HandleSSE)
	g.GET("/notifications/ws", h.HandleWebSocket)
}

// HandleSSE streams events as text/event-stream until the client disconnects.
func (h *StreamHandler) HandleSSE(c echo.Context) error {
	clinicianID, err := auth.ActorID(c)
	if err != nil {
		return err
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	w.Flush()

	client := newClient(ClinicianTopic(clinicianID))
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-client.send:
			if !ok {
				return nil
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.event, f.data); err != nil {
				return nil
			}
			w.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

// HandleWebSocket upgrades the connection and pushes events as text frames.
// Inbound messages are ignored; the read loop only tracks liveness.
func (h *StreamHandler) HandleWebSocket(c echo.Context) error {
	clinicianID, err := auth.ActorID(c)
	if err != nil {
		return err
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := newClient(ClinicianTopic(clinicianID))
	h.hub.Register(client)

	go h.writePump(client, ws)
	go h.readPump(client, ws)
	return nil
}

func (h *StreamHandler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(512)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case f, ok := <-client.send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, f.data); err != nil {
				h.logger.Debug().Err(err).Str("client_id", client.ID).Msg("realtime: websocket write failed")
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
