package hub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stockpulse/stockpulse/internal/event"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 60 * time.Second
	readLimit    = 1 << 16
)

// WSHandler upgrades HTTP requests to websocket push connections and
// bridges them onto the hub.
type WSHandler struct {
	hub      *Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler constructs the /ws endpoint handler.
func NewWSHandler(h *Hub, logger *slog.Logger) *WSHandler {
	return &WSHandler{hub: h, logger: logger, upgrader: websocket.Upgrader{}}
}

func (ws *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wc, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	sub := ws.hub.Subscribe()
	go ws.writePump(wc, sub)
	ws.readPump(wc, sub)
}

// writePump drains the subscription channel onto the wire and keeps the
// connection alive with protocol-level pings. It exits when the
// subscription is closed or a write fails.
func (ws *WSHandler) writePump(wc *websocket.Conn, sub *Subscription) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		wc.Close()
	}()
	for {
		select {
		case env, ok := <-sub.C():
			if !ok {
				wc.SetWriteDeadline(time.Now().Add(writeTimeout))
				wc.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := wc.WriteJSON(env); err != nil {
				ws.logger.Debug("websocket write failed",
					slog.String("subscription", sub.ID()), slog.Any("error", err))
				ws.hub.Unsubscribe(sub)
				return
			}
		case <-ticker.C:
			wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := wc.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				ws.hub.Unsubscribe(sub)
				return
			}
		}
	}
}

// readPump consumes inbound client messages until the connection drops.
// The transport is agnostic to message content beyond the envelope frame;
// the only recognized request is PING, answered with PONG.
func (ws *WSHandler) readPump(wc *websocket.Conn, sub *Subscription) {
	defer ws.hub.Unsubscribe(sub)
	wc.SetReadLimit(readLimit)
	for {
		_, data, err := wc.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ws.logger.Debug("websocket read failed",
					slog.String("subscription", sub.ID()), slog.Any("error", err))
			}
			return
		}
		var env event.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			ws.logger.Warn("discarding malformed client message",
				slog.String("subscription", sub.ID()), slog.Any("error", err))
			continue
		}
		if env.Type == event.TypePing {
			pong, _ := event.NewEnvelope(event.TypePong, nil)
			ws.hub.Reply(sub, pong)
			continue
		}
		ws.logger.Info("client message received",
			slog.String("subscription", sub.ID()), slog.String("type", env.Type))
	}
}
