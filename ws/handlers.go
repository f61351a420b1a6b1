package ws

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// checkOrigin admits browsers whose Origin is on the hub's allow list.
// Requests without an Origin header come from non-browser clients such as
// the terminal board and are always admitted. With no allow list configured
// only same-host origins pass.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.origins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	origin = strings.TrimRight(origin, "/")
	for _, allowed := range h.origins {
		if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

// ServeWS upgrades the request and subscribes the socket to topic. The
// connection is receive-only; anything the client sends is discarded.
// Cross-origin browser handshakes are refused with 403 unless the origin is
// allowed via WithAllowedOrigins.
func ServeWS(hub *Hub, topic string) echo.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     hub.checkOrigin,
	}
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			hub.logger.Warn().Err(err).
				Str("topic", topic).
				Str("origin", c.Request().Header.Get("Origin")).
				Msg("websocket upgrade failed")
			return nil
		}
		client := hub.NewClient(topic)
		hub.Register(client)

		go writePump(client, conn)
		go readPump(hub, client, conn)
		return nil
	}
}

// readPump keeps the read deadline alive through pongs and unregisters the
// client once the peer goes away.
func readPump(hub *Hub, c *Client, conn *websocket.Conn) {
	defer func() {
		hub.Unregister(c)
		conn.Close()
	}()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				hub.logger.Debug().Err(err).Str("client_id", c.ID).Msg("websocket closed unexpectedly")
			}
			return
		}
	}
}

func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
