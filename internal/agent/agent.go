package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NowakAdmin/BizantiPOS/internal/config"
	"github.com/NowakAdmin/BizantiPOS/internal/display"
	"github.com/NowakAdmin/BizantiPOS/internal/printer"
)

const (
	pollInterval     = 2 * time.Second
	fallbackDuration = 45 * time.Second
	maxBackoff       = 20 * time.Second
)

type IncomingMessage struct {
	Type    string          `json:"type"`
	JobID   string          `json:"job_id,omitempty"`
	Command string          `json:"command,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type OutgoingMessage struct {
	Type      string         `json:"type"`
	AgentID   string         `json:"agent_id,omitempty"`
	JobID     string         `json:"job_id,omitempty"`
	Status    string         `json:"status,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Agent owns the POS devices and bridges them to the Bizanti server. Commands
// arriving over the websocket (or the HTTP fallback) are executed on the
// devices; device events are forwarded back as "event" messages.
type Agent struct {
	cfg    *config.Config
	logger *log.Logger
	client *http.Client
	poll   time.Duration

	printer *printer.Printer
	display *display.Display
	events  chan OutgoingMessage

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfg *config.Config, logger *log.Logger) (*Agent, error) {
	a := &Agent{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: 15 * time.Second},
		poll:   pollInterval,
		events: make(chan OutgoingMessage, eventBuffer),
	}
	if err := a.buildDevices(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Agent) Start(parent context.Context) error {
	if a.running.Swap(true) {
		return nil
	}

	ctx, cancel := context.WithCancel(parent)
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.openDevices(ctx)
		a.loop(ctx)
	}()
	return nil
}

func (a *Agent) Stop() {
	if !a.running.Load() {
		return
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	a.closeDevices()
	a.running.Store(false)
}

func (a *Agent) IsRunning() bool {
	return a.running.Load()
}

func (a *Agent) heartbeatEvery() time.Duration {
	if a.cfg.HeartbeatSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.cfg.HeartbeatSeconds) * time.Second
}

// loop keeps a server channel open until ctx ends. The websocket is preferred;
// after it drops the agent polls over HTTP for a while before redialing.
func (a *Agent) loop(ctx context.Context) {
	switch {
	case strings.TrimSpace(a.cfg.AgentToken) == "":
		a.logger.Printf("Brak tokena agenta. Urządzenia działają lokalnie. Użyj: bizanti-pos configure --token=...")
		a.discardEvents(ctx)
		return
	case strings.TrimSpace(a.cfg.ServerURL) == "" && strings.TrimSpace(a.cfg.WebSocketURL) == "":
		a.logger.Printf("Brak ServerURL i WebSocketURL. Użyj: bizanti-pos configure ...")
		a.discardEvents(ctx)
		return
	}

	backoff := time.Second
	for ctx.Err() == nil {
		if err := a.connectOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Printf("Połączenie z serwerem zakończone błędem: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(2*backoff, maxBackoff)
	}
}

func (a *Agent) connectOnce(ctx context.Context) error {
	if strings.TrimSpace(a.cfg.WebSocketURL) == "" {
		return a.runHTTPPolling(ctx, 0)
	}

	err := a.runSession(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		a.logger.Printf("Sesja WebSocket zakończona: %v", err)
	}
	if strings.TrimSpace(a.cfg.ServerURL) == "" {
		return nil
	}
	a.logger.Printf("Przechodzę na fallback HTTP polling.")
	return a.runHTTPPolling(ctx, fallbackDuration)
}

// discardEvents drops device events while there is no server to send them to.
func (a *Agent) discardEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.events:
		}
	}
}

// runHTTPPolling pulls commands and pushes events until ctx ends, a request
// fails or maxDuration passes. Zero means no limit.
func (a *Agent) runHTTPPolling(ctx context.Context, maxDuration time.Duration) error {
	poll := time.NewTicker(a.poll)
	defer poll.Stop()
	beat := time.NewTicker(a.heartbeatEvery())
	defer beat.Stop()

	var deadline <-chan time.Time
	if maxDuration > 0 {
		timer := time.NewTimer(maxDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	if err := a.heartbeat(ctx); err != nil {
		a.logger.Printf("Błąd heartbeat HTTP: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return nil
		case <-beat.C:
			if err := a.heartbeat(ctx); err != nil {
				a.logger.Printf("Błąd heartbeat HTTP: %v", err)
			}
		case event := <-a.events:
			if err := a.reportEvent(ctx, event); err != nil {
				a.logger.Printf("Błąd wysyłania zdarzenia: %v", err)
			}
		case <-poll.C:
			commands, err := a.pullCommands(ctx)
			if err != nil {
				return err
			}
			for _, message := range commands {
				result := a.runCommand(ctx, message)
				if err := a.reportCommandResult(ctx, result); err != nil {
					a.logger.Printf("Błąd raportowania wyniku zadania %s: %v", message.JobID, err)
				}
			}
		}
	}
}

// runCommand executes one server command and builds its result message.
func (a *Agent) runCommand(ctx context.Context, message IncomingMessage) OutgoingMessage {
	command := strings.ToLower(strings.TrimSpace(message.Command))
	data, err := a.executeCommand(ctx, command, message.Payload)

	out := a.message("command_result")
	out.JobID = message.JobID
	if err != nil {
		out.Status = "failed"
		out.Error = err.Error()
		a.logger.Printf("Zadanie %s (%s) nieudane: %v", message.JobID, command, err)
		return out
	}
	out.Status = "completed"
	out.Data = data
	a.logger.Printf("Zadanie %s (%s) wykonane", message.JobID, command)
	return out
}

// message returns an outgoing message stamped with the agent id and time.
func (a *Agent) message(kind string) OutgoingMessage {
	return OutgoingMessage{
		Type:      kind,
		AgentID:   a.cfg.AgentID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func (a *Agent) deviceNames() []string {
	var names []string
	if a.printer != nil {
		names = append(names, a.printer.Name())
	}
	if a.display != nil {
		names = append(names, a.display.Name())
	}
	return names
}
