package sensorsim

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const writeTimeout = 5 * time.Second

// handleWebSocket pushes the current state on connect and again on every
// change until the client disconnects.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	defer conn.Close()

	updates, unsubscribe := s.state.Subscribe()
	defer unsubscribe()

	// Inbound messages are discarded; a read error means the peer is gone.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(1 << 10)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	s.log.Debug("websocket subscriber connected", "remote", c.RealIP())
	defer s.log.Debug("websocket subscriber gone", "remote", c.RealIP())

	if err := writeState(conn, s.state.Get()); err != nil {
		return nil
	}
	ctx := c.Request().Context()
	for {
		select {
		case <-closed:
			return nil
		case <-ctx.Done():
			return nil
		case st := <-updates:
			if err := writeState(conn, st); err != nil {
				return nil
			}
		}
	}
}

func writeState(conn *websocket.Conn, st State) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(st)
}
