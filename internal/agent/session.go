package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// runSession serves one websocket connection. Reads happen on a helper
// goroutine; every write happens here so the connection has a single writer.
func (a *Agent) runSession(ctx context.Context) error {
	conn, response, err := websocket.DefaultDialer.DialContext(ctx, a.cfg.WebSocketURL, a.authHeaders())
	if err != nil {
		if response != nil {
			return fmt.Errorf("błąd połączenia websocket (http %d): %w", response.StatusCode, err)
		}
		return err
	}
	defer func() {
		_ = conn.Close()
	}()
	a.logger.Printf("Połączono z Bizanti WebSocket: %s", a.cfg.WebSocketURL)

	hello := a.message("auth")
	hello.Status = "online"
	hello.Data = map[string]any{"device_name": a.cfg.DeviceName, "devices": a.deviceNames()}
	if err = conn.WriteJSON(hello); err != nil {
		return err
	}

	incoming := make(chan IncomingMessage, 8)
	readErr := make(chan error, 1)
	go func() {
		for {
			var message IncomingMessage
			if err := conn.ReadJSON(&message); err != nil {
				readErr <- err
				return
			}
			incoming <- message
		}
	}()

	beat := time.NewTicker(a.heartbeatEvery())
	defer beat.Stop()

	for {
		var out *OutgoingMessage
		select {
		case <-ctx.Done():
			bye := a.message("status")
			bye.Status = "offline"
			_ = conn.WriteJSON(bye)
			return ctx.Err()
		case err = <-readErr:
			return err
		case message := <-incoming:
			out = a.reply(ctx, message)
		case event := <-a.events:
			out = &event
		case <-beat.C:
			ping := a.message("heartbeat")
			ping.Status = "online"
			out = &ping
		}
		if out == nil {
			continue
		}
		if err = conn.WriteJSON(out); err != nil {
			return err
		}
	}
}

// reply answers a websocket message. Messages other than pings and commands
// get no answer.
func (a *Agent) reply(ctx context.Context, message IncomingMessage) *OutgoingMessage {
	if message.JobID == "" {
		message.JobID = uuid.NewString()
	}

	switch {
	case strings.EqualFold(strings.TrimSpace(message.Type), "ping"), strings.EqualFold(strings.TrimSpace(message.Command), "ping"):
		pong := a.message("pong")
		pong.JobID = message.JobID
		return &pong
	case strings.EqualFold(strings.TrimSpace(message.Type), "command"):
		result := a.runCommand(ctx, message)
		return &result
	}
	return nil
}
