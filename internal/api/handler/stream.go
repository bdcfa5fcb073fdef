package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxClientFrame = 512
)

// Streams authenticate with a bearer token rather than cookies, so the
// origin is not checked.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// streamJSON subscribes through open, upgrades the connection and writes
// every received value as one JSON frame. The stream ends when the
// subscription closes, the client goes away, or final reports true for the
// value just written. The subscription is cancelled in every case.
//
// open runs before the upgrade, so its errors still reach the error handler
// as a plain HTTP response.
func streamJSON[T any](c echo.Context, open func(ctx context.Context) (<-chan T, error), frame func(T) any, final func(T) bool) error {
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	events, err := open(ctx)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already answered the request.
		c.Logger().Debugf("websocket upgrade: %v", err)
		return nil
	}
	defer conn.Close()

	go readPump(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			closeStream(conn, websocket.CloseGoingAway)
			return nil
		case v, ok := <-events:
			if !ok {
				closeStream(conn, websocket.CloseNormalClosure)
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame(v)); err != nil {
				return nil
			}
			if final != nil && final(v) {
				closeStream(conn, websocket.CloseNormalClosure)
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}

// readPump discards client frames and cancels the stream once the client
// disconnects or stops answering pings.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxClientFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func closeStream(conn *websocket.Conn, code int) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""),
		time.Now().Add(writeWait),
	)
}
