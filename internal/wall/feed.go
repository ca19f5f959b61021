package wall

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"camwall/internal/events"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	feedBuffer     = 64
	feedWriteWait  = 10 * time.Second
	feedPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Events handles GET /events: a WebSocket feed that starts with a snapshot of
// every session followed by session and camera-list events as they happen.
// Events are dropped for clients that cannot keep up.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	bus := h.svc.Bus()
	if bus == nil {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	log := h.log.With(slog.String("client_id", clientID))

	ch := make(chan any, feedBuffer)
	unsubSessions := events.SubscribeToChannel[events.SessionEvent](bus, ch)
	defer unsubSessions()
	unsubCameras := events.SubscribeToChannel[events.CamerasSyncedEvent](bus, ch)
	defer unsubCameras()

	views, err := h.svc.Sessions(r.Context())
	if err != nil {
		log.Warn("snapshot failed", slog.String("error", err.Error()))
		return
	}
	if err := send(conn, "snapshot", views); err != nil {
		return
	}
	log.Debug("event feed connected")

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(feedPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			log.Debug("event feed disconnected")
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev := <-ch:
			var err error
			switch e := ev.(type) {
			case events.SessionEvent:
				err = send(conn, "session", e.Event)
			case events.CamerasSyncedEvent:
				err = send(conn, "cameras", e)
			}
			if err != nil {
				log.Debug("event feed write failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func send(conn *websocket.Conn, typ string, data any) error {
	b, err := json.Marshal(wsMessage{Type: typ, Data: data, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
