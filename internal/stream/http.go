package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stockpulse/stockpulse/internal/event"
)

const wsWriteTimeout = 10 * time.Second

// WSDialer is the production Dialer backed by gorilla/websocket.
type WSDialer struct {
	Dialer *websocket.Dialer
}

// Dial implements Dialer.
func (d WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	wd := d.Dialer
	if wd == nil {
		wd = websocket.DefaultDialer
	}
	wc, _, err := wd.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{wc: wc}, nil
}

type wsConn struct {
	wc *websocket.Conn
}

func (c *wsConn) ReadEnvelope() (event.Envelope, error) {
	var env event.Envelope
	err := c.wc.ReadJSON(&env)
	return env, err
}

func (c *wsConn) WriteEnvelope(env event.Envelope) error {
	c.wc.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.wc.WriteJSON(env)
}

func (c *wsConn) Close() error { return c.wc.Close() }

// APIClient implements Fetcher and Sender against the HTTP read and
// command boundaries (/api/poll and /api/message).
type APIClient struct {
	base   string
	client *http.Client
}

// NewAPIClient constructs an APIClient for the server at base, e.g.
// "http://127.0.0.1:8080". A nil client falls back to
// http.DefaultClient.
func NewAPIClient(base string, client *http.Client) *APIClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &APIClient{base: base, client: client}
}

// FetchSince implements Fetcher.
func (a *APIClient) FetchSince(ctx context.Context, cursor uint64) ([]event.Event, error) {
	url := a.base + "/api/poll?since=" + strconv.FormatUint(cursor, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stream: poll returned %s", resp.Status)
	}
	var body struct {
		Messages []event.Event `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("stream: decode poll response: %w", err)
	}
	return body.Messages, nil
}

// Send implements Sender.
func (a *APIClient) Send(ctx context.Context, env event.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/api/message", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("stream: message returned %s", resp.Status)
	}
	return nil
}
