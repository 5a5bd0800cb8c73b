// Package terminal implements the session provider against a terminal-side
// bridge gateway. The gateway runs next to the MT5 terminal and translates
// JSON frames into native terminal calls; this client speaks strict
// request/response over a single WebSocket connection.
package terminal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"MT5Pull/internal/domain/models"
	"MT5Pull/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements repository.SessionProvider over a WebSocket bridge.
// The bridge protocol is not reentrant and neither is this client: the
// session manager guarantees one in-flight call at a time.
type Client struct {
	bridgeURL      string
	connectTimeout time.Duration
	callTimeout    time.Duration

	conn      *websocket.Conn
	connected bool
	seq       atomic.Int64
}

// New creates a bridge-backed session provider.
func New(bridgeURL string, connectTimeout, callTimeout time.Duration) *Client {
	return &Client{
		bridgeURL:      bridgeURL,
		connectTimeout: connectTimeout,
		callTimeout:    callTimeout,
	}
}

type request struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *bridgeError    `json:"error,omitempty"`
}

type bridgeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *bridgeError) Error() string {
	return fmt.Sprintf("bridge %s: %s", e.Code, e.Message)
}

// Login dials the bridge (if needed) and authenticates the terminal account.
func (c *Client) Login(ctx context.Context, creds models.Credentials) error {
	if !c.connected {
		dialCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
		defer cancel()
		conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.bridgeURL, nil)
		if err != nil {
			return fmt.Errorf("bridge connect: %w", err)
		}
		c.conn = conn
		c.connected = true
	}

	params := map[string]interface{}{
		"path":     creds.Path,
		"login":    creds.Login,
		"password": creds.Password,
		"server":   creds.Server,
	}
	if err := c.call(ctx, "login", params, nil); err != nil {
		return fmt.Errorf("terminal login: %w", err)
	}
	return nil
}

// Tick fetches the most recent quote for a symbol.
func (c *Client) Tick(ctx context.Context, symbol string) (*models.Tick, error) {
	var tick models.Tick
	params := map[string]interface{}{"symbol": symbol}
	if err := c.call(ctx, "tick", params, &tick); err != nil {
		return nil, fmt.Errorf("tick %s: %w", symbol, err)
	}
	return &tick, nil
}

// RatesRange fetches bars between from and to, both in terminal server time.
func (c *Client) RatesRange(ctx context.Context, symbol string, tf repository.Timeframe, from, to time.Time) ([]models.Candle, error) {
	var candles []models.Candle
	params := map[string]interface{}{
		"symbol":     symbol,
		"time_frame": string(tf),
		"from":       from.Unix(),
		"to":         to.Unix(),
	}
	if err := c.call(ctx, "rates_range", params, &candles); err != nil {
		return nil, fmt.Errorf("rates_range %s %s: %w", symbol, tf, err)
	}
	return candles, nil
}

// RatesFromOffset fetches count bars ending offset bars before the latest
// closed bar. Offset 0 means the most recent closed bar.
func (c *Client) RatesFromOffset(ctx context.Context, symbol string, tf repository.Timeframe, offset, count int) ([]models.Candle, error) {
	var candles []models.Candle
	params := map[string]interface{}{
		"symbol":     symbol,
		"time_frame": string(tf),
		"offset":     offset,
		"count":      count,
	}
	if err := c.call(ctx, "rates_from_pos", params, &candles); err != nil {
		return nil, fmt.Errorf("rates_from_pos %s %s: %w", symbol, tf, err)
	}
	return candles, nil
}

// Shutdown tells the bridge to release the terminal and closes the socket.
func (c *Client) Shutdown() error {
	if !c.connected {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.callTimeout)
	defer cancel()
	// best-effort: the socket close below is what actually frees the session
	_ = c.call(ctx, "shutdown", nil, nil)
	err := c.conn.Close()
	c.conn = nil
	c.connected = false
	if err != nil {
		return fmt.Errorf("bridge close: %w", err)
	}
	return nil
}

// call performs one request/response exchange on the socket.
func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("bridge not connected")
	}

	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		raw = b
	}

	id := c.seq.Add(1)
	deadline := time.Now().Add(c.callTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := c.conn.WriteJSON(request{ID: id, Method: method, Params: raw}); err != nil {
		c.markBroken()
		return fmt.Errorf("write %s: %w", method, err)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	for {
		var resp response
		if err := c.conn.ReadJSON(&resp); err != nil {
			c.markBroken()
			return fmt.Errorf("read %s: %w", method, err)
		}
		// frames for stale ids can appear after a timed-out call; skip them
		if resp.ID != id {
			continue
		}
		if resp.Error != nil {
			return resp.Error
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	}
}

// markBroken drops the connection so the next Login re-dials.
func (c *Client) markBroken() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.connected = false
}
