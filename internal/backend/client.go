// Package backend is the HTTP/JSON-RPC adapter for a local status-go
// backend. REST endpoints live at POST /statusgo/<Method>; everything
// else goes through the JSON-RPC CallRPC endpoint.
//
// The client is a pure I/O adapter: one request per call, a bounded
// timeout, no retries. Retry policy belongs to callers.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const (
	// DefaultTimeout bounds every REST/RPC call.
	DefaultTimeout = 30 * time.Second
	// HealthTimeout bounds the health probe, which is expected to be
	// cheap and is polled during session start.
	HealthTimeout = 5 * time.Second
	// LoginTimeout is longer because LoginAccount can block on key
	// derivation and database migrations.
	LoginTimeout = 60 * time.Second
)

// Client talks to one status-backend instance.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	rpcID atomic.Int64
}

// New creates a client for a backend listening on a local port.
func New(port int) *Client {
	return NewWithBaseURL(fmt.Sprintf("http://127.0.0.1:%d", port))
}

// NewWithBaseURL creates a client for an explicit base URL. Tests use
// this with httptest servers.
func NewWithBaseURL(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: DefaultTimeout},
	}
}

// SignalsURL returns the WebSocket endpoint for the push signal
// stream served by the same backend.
func (c *Client) SignalsURL() string {
	u := c.BaseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/signals"
}

// Health probes GET /health. It is non-throwing: any transport error
// or non-200 status reads as "not healthy".
func (c *Client) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// callRest performs one POST /statusgo/<method> request.
func (c *Client) callRest(ctx context.Context, method string, body any, result any, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/statusgo/"+method, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("status-backend %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("status-backend %s: read response: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Method: method, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("status-backend %s: decode response: %w", method, err)
		}
	}
	return nil
}

// rpcEnvelope is the JSON-RPC 2.0 response envelope.
type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CallRPC makes a JSON-RPC call via the CallRPC endpoint and decodes
// the result field into result (which may be nil to discard it).
func (c *Client) CallRPC(ctx context.Context, method string, params []any, result any) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	if params == nil {
		params = []any{}
	}
	body := map[string]any{
		"jsonrpc": "2.0",
		"id":      c.rpcID.Add(1),
		"method":  method,
		"params":  params,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal RPC %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/statusgo/CallRPC", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create RPC %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("status-backend RPC %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("status-backend RPC %s: read response: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Method: method, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var envelope rpcEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("status-backend RPC %s: decode envelope: %w", method, err)
	}
	if envelope.Error != nil {
		return &RPCError{Method: method, Code: envelope.Error.Code, Message: envelope.Error.Message}
	}
	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("status-backend RPC %s: decode result: %w", method, err)
		}
	}
	return nil
}

// CallRPCRaw makes a JSON-RPC call and returns the raw result field.
// Used by the raw `rpc` command.
func (c *Client) CallRPCRaw(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.CallRPC(ctx, method, params, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ActiveChats returns the backend's active chat list.
func (c *Client) ActiveChats(ctx context.Context) ([]Chat, error) {
	var chats []Chat
	if err := c.CallRPC(ctx, "wakuext_activeChats", nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// ChatMessages fetches up to limit recent messages for a chat,
// starting from cursor ("" for the newest page).
func (c *Client) ChatMessages(ctx context.Context, chatID, cursor string, limit int) (*MessagesPage, error) {
	var page MessagesPage
	if err := c.CallRPC(ctx, "wakuext_chatMessages", []any{chatID, cursor, limit}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetSettings returns account settings, including the account's own
// public key used for self-echo suppression.
func (c *Client) GetSettings(ctx context.Context) (*Settings, error) {
	var settings Settings
	if err := c.CallRPC(ctx, "settings_getSettings", nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// SendOneToOneMessage sends an outbound direct message.
func (c *Client) SendOneToOneMessage(ctx context.Context, chatID, text string) error {
	return c.CallRPC(ctx, "wakuext_sendOneToOneMessage", []any{map[string]string{
		"id":      chatID,
		"message": text,
	}}, nil)
}

// InitializeApplication initializes the backend's data directory.
// Account lifecycle is normally driven by external services; this is
// exposed for operational tooling only.
func (c *Client) InitializeApplication(ctx context.Context, dataDir string) error {
	return c.callRest(ctx, "InitializeApplication", map[string]string{"dataDir": dataDir}, nil, DefaultTimeout)
}

// LoginAccount logs a key pair into the backend.
func (c *Client) LoginAccount(ctx context.Context, keyUID, password string) error {
	return c.callRest(ctx, "LoginAccount", map[string]string{
		"keyUID":   keyUID,
		"password": password,
	}, nil, LoginTimeout)
}
