package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemon/telemon/internal/platform/auth"
)

func TestHandleSSE_StreamsClinicianEvents(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	h := NewStreamHandler(hub, nil, zerolog.Nop())
	doctor := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/stream", nil)
	req = req.WithContext(auth.WithUser(ctx, doctor.String(), []string{auth.RolePhysician}))
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	done := make(chan error)
	go func() { done <- h.HandleSSE(c) }()

	waitFor(t, func() bool { return hub.TopicCount(ClinicianTopic(doctor)) == 1 })
	hub.Broadcast(Event{Type: EventNewAlert, Topic: ClinicianTopic(doctor)})
	waitFor(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for cl := range hub.clients[ClinicianTopic(doctor)] {
			return len(cl.send) == 0
		}
		return false
	})
	// Give the handler a moment to write the dequeued frame.
	time.Sleep(20 * time.Millisecond)
	cancel()

	require.NoError(t, <-done)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Body.String(), "event: new_alert\n")
	assert.Equal(t, 0, hub.TopicCount(ClinicianTopic(doctor)))
}

func TestHandleSSE_RequiresIdentity(t *testing.T) {
	h := NewStreamHandler(NewHub(zerolog.Nop()), nil, zerolog.Nop())
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := h.HandleSSE(c)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestHandleWebSocket_PushesEvents(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	h := NewStreamHandler(hub, nil, zerolog.Nop())
	doctor := uuid.New()

	e := echo.New()
	g := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithUser(c.Request().Context(), doctor.String(), []string{auth.RolePhysician})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	h.RegisterRoutes(g)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/notifications/ws"
	ws, _, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	waitFor(t, func() bool { return hub.TopicCount(ClinicianTopic(doctor)) == 1 })
	hub.Broadcast(Event{Type: EventAlertUpdated, Topic: ClinicianTopic(doctor)})

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(msg, &event))
	assert.Equal(t, EventAlertUpdated, event.Type)
}
