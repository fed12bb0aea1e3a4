package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const apiPrefix = "/api/bizanticore/agent"

// authHeaders identifies the agent on both the REST API and the websocket.
func (a *Agent) authHeaders() http.Header {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+a.cfg.AgentToken)
	headers.Set("X-Agent-ID", a.cfg.AgentID)
	headers.Set("X-Agent-Name", a.cfg.DeviceName)
	if tenant := strings.TrimSpace(a.cfg.TenantID); tenant != "" {
		headers.Set("X-Tenant-ID", tenant)
	}
	return headers
}

// callAPI sends in as JSON (when not nil) to path under the agent API and
// decodes the response into out (when not nil).
func (a *Agent) callAPI(ctx context.Context, method, path string, in, out any) error {
	base := strings.TrimRight(strings.TrimSpace(a.cfg.ServerURL), "/")
	if base == "" {
		return fmt.Errorf("brak server_url w konfiguracji")
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	request, err := http.NewRequestWithContext(ctx, method, base+apiPrefix+path, body)
	if err != nil {
		return err
	}
	request.Header = a.authHeaders()
	if in != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := a.client.Do(request)
	if err != nil {
		return err
	}
	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, response.StatusCode, strings.TrimSpace(string(text)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(out)
}

func (a *Agent) heartbeat(ctx context.Context) error {
	return a.callAPI(ctx, http.MethodPost, "/heartbeat", map[string]any{"devices": a.deviceNames()}, nil)
}

func (a *Agent) pullCommands(ctx context.Context) ([]IncomingMessage, error) {
	var parsed struct {
		Success bool              `json:"success"`
		Data    []IncomingMessage `json:"data"`
	}
	if err := a.callAPI(ctx, http.MethodGet, "/commands/next?limit=5", nil, &parsed); err != nil {
		return nil, err
	}
	if !parsed.Success {
		return nil, fmt.Errorf("serwer odrzucił pobranie komend")
	}
	return parsed.Data, nil
}

func (a *Agent) reportCommandResult(ctx context.Context, result OutgoingMessage) error {
	if strings.TrimSpace(result.JobID) == "" {
		return fmt.Errorf("brak job_id")
	}
	payload := map[string]any{"status": result.Status}
	if result.Error != "" {
		payload["error"] = result.Error
	} else {
		payload["result"] = result.Data
	}
	return a.callAPI(ctx, http.MethodPost, "/commands/"+url.PathEscape(result.JobID)+"/result", payload, nil)
}

func (a *Agent) reportEvent(ctx context.Context, event OutgoingMessage) error {
	return a.callAPI(ctx, http.MethodPost, "/events", event, nil)
}
