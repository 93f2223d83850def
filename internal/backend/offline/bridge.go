package offline

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jo-hoe/iconforge/internal/metrics"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// CACHE_ICONS carries whole icon payloads
	maxMessageSize = 32 << 20
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// same-origin page only
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

// Bridge connects pages to the worker over a websocket
type Bridge struct {
	worker *Worker
}

func NewBridge(worker *Worker) *Bridge {
	return &Bridge{worker: worker}
}

type bridgeClient struct {
	conn *websocket.Conn
	send chan Message
}

// Handle upgrades the request and relays messages until the connection closes
func (b *Bridge) Handle(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("OfflineBridge: failed to upgrade websocket", "error", err)
		return nil
	}

	broadcasts, unsubscribe, err := b.worker.Subscribe()
	if err != nil {
		_ = conn.Close()
		return nil
	}

	metrics.WebSocketConnections.Inc()
	client := &bridgeClient{conn: conn, send: make(chan Message, 16)}
	done := make(chan struct{})

	go client.writePump(broadcasts, done)
	client.readPump(b.worker)

	close(done)
	unsubscribe()
	metrics.WebSocketConnections.Dec()
	return nil
}

func (c *bridgeClient) readPump(worker *Worker) {
	defer func() {
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("OfflineBridge: connection closed", "error", err)
			}
			return
		}

		reply, err := worker.HandleMessage(msg)
		if err != nil {
			slog.Warn("OfflineBridge: message rejected", "type", msg.Type, "error", err)
			reply = &Message{Type: MessageError, Error: err.Error()}
		}
		if reply != nil {
			select {
			case c.send <- *reply:
			default:
				slog.Warn("OfflineBridge: reply dropped, client not reading", "type", reply.Type)
			}
		}
	}
}

func (c *bridgeClient) writePump(broadcasts <-chan Message, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		var msg Message
		select {
		case <-done:
			return
		case msg = <-c.send:
		case m, ok := <-broadcasts:
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			msg = m
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// ServeCachedIcon serves an icon previously stored with CACHE_ICONS
func (b *Bridge) ServeCachedIcon(c echo.Context) error {
	key := cacheKey(http.MethodGet, IconPathPrefix+c.Param("filename"), "")
	entry, ok := b.worker.Get(key)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "icon not cached")
	}
	return serveEntry(c, entry, "hit")
}
