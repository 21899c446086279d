package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/salon-live-queue/internal/realtime"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxFrame   = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Queue displays are served from other origins; the stream is read-only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientFrame is the only message a client sends.
type clientFrame struct {
	Type string `json:"type"` // "resync"
}

// Live handles GET /v1/shops/:id/live and upgrades to a WebSocket that
// streams the shop's room.  ?mode=blocking subscribes a booking form to
// blocked-interval messages only.  The first message is always the full
// state; a {"type":"resync"} frame asks for it again.  A connection that
// falls behind is closed and must reconnect.
func (h *QueueHandler) Live(c echo.Context) error {
	shopID := strings.TrimSpace(c.Param("id"))
	if shopID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing shop id"})
	}
	mode := realtime.ParseMode(c.QueryParam("mode"))

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Printf("live: upgrade failed: %v", err)
		return nil
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := realtime.NewSubscriber(mode, h.SubscriberBuffer)
	if err := h.Rooms.Subscribe(ctx, shopID, sub); err != nil {
		log.Printf("live: subscribe %s failed: %v", shopID, err)
		closeWith(ws, websocket.CloseTryAgainLater, "subscribe failed")
		return nil
	}
	defer h.Rooms.Unsubscribe(shopID, sub.ID())

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer ws.Close()
		writeLoop(ctx, ws, sub)
	}()

	ws.SetReadLimit(maxFrame)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var frame clientFrame
		if err := ws.ReadJSON(&frame); err != nil {
			break
		}
		switch frame.Type {
		case "resync":
			if err := h.Rooms.Resync(ctx, shopID, sub); err != nil {
				log.Printf("live: resync %s/%s failed: %v", shopID, sub.ID(), err)
			}
		default:
			log.Printf("live: ignoring client frame %q", frame.Type)
		}
	}
	cancel()
	<-done
	return nil
}

// writeLoop owns every data write on ws.
func writeLoop(ctx context.Context, ws *websocket.Conn, sub *realtime.Subscriber) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			closeWith(ws, websocket.CloseNormalClosure, "")
			return
		case <-sub.Done():
			reason := "subscription closed"
			if err := sub.Err(); err != nil {
				reason = err.Error()
			}
			closeWith(ws, websocket.CloseTryAgainLater, reason)
			return
		case msg := <-sub.C():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(msg); err != nil {
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func closeWith(ws *websocket.Conn, code int, reason string) {
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}
