// Package transport submits claim requests to the adjudication service. It
// prefers the streaming WebSocket channel and falls back transparently to a
// single synchronous call when the channel fails before a terminal frame
// arrives. Callers always observe exactly one Terminal or Failure.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Sudeeparyan/Laya-sub000/internal/claims"
)

// DefaultResultWait bounds how long an open channel may go without a
// terminal frame before it is abandoned in favour of the fallback call.
const DefaultResultWait = 120 * time.Second

const (
	streamPath   = "/api/ws/chat"
	fallbackPath = "/api/chat"
)

// Client talks to one adjudication service endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
	resultWait time.Duration
	log        zerolog.Logger
}

// NewClient builds a transport for the service at baseURL (http or https).
// A non-positive resultWait selects DefaultResultWait.
func NewClient(baseURL string, resultWait time.Duration, logger zerolog.Logger) *Client {
	if resultWait <= 0 {
		resultWait = DefaultResultWait
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		resultWait: resultWait,
		log:        logger,
	}
}

// Submit executes one claim request. The returned channel yields progress
// and status events in arrival order and is closed after the single
// terminal event (Terminal or Failure).
//
// If the streaming channel fails before a terminal frame — connection
// refused, protocol error, abnormal close, or the result-wait expiring —
// the request is retried once as a plain synchronous call; the caller then
// sees a Terminal (or Failure) with no further progress events.
func (c *Client) Submit(ctx context.Context, req claims.Request) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)

		delivered, err := c.stream(ctx, req, events)
		if delivered {
			return
		}
		if ctx.Err() != nil {
			events <- Failure{Err: ctx.Err()}
			return
		}
		if err != nil {
			c.log.Warn().Err(err).Msg("streaming channel failed before a result, using fallback call")
		}
		c.fallback(ctx, req, events)
	}()
	return events
}

// stream runs the primary path. It reports whether a terminal event was
// delivered; when false the caller owns recovery.
func (c *Client) stream(ctx context.Context, req claims.Request, events chan<- Event) (bool, error) {
	wsURL, err := c.streamURL()
	if err != nil {
		return false, err
	}

	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("open channel: %w", err)
	}
	defer conn.Close()

	// Unblock the read loop if the caller gives up.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	deadline := time.Now().Add(c.resultWait)
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return false, err
	}
	if err := conn.WriteJSON(req); err != nil {
		return false, fmt.Errorf("send request frame: %w", err)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return false, err
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return false, fmt.Errorf("channel closed before result: %w", err)
		}
		ev, terminal, err := decodeFrame(data)
		if err != nil {
			return false, err
		}
		if ev == nil {
			continue
		}
		events <- ev
		if terminal {
			return true, nil
		}
	}
}

// fallback performs the single synchronous call and delivers its outcome as
// the terminal event.
func (c *Client) fallback(ctx context.Context, req claims.Request, events chan<- Event) {
	ctx, cancel := context.WithTimeout(ctx, c.resultWait)
	defer cancel()

	res, err := c.postClaim(ctx, req)
	if err != nil {
		events <- Failure{Err: err}
		return
	}
	events <- Terminal{Result: res}
}

func (c *Client) postClaim(ctx context.Context, req claims.Request) (claims.Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return claims.Result{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+fallbackPath, bytes.NewReader(body))
	if err != nil {
		return claims.Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return claims.Result{}, fmt.Errorf("fallback call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return claims.Result{}, fmt.Errorf("fallback call: %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var res claims.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return claims.Result{}, fmt.Errorf("decode fallback response: %w", err)
	}
	return res, nil
}

func (c *Client) streamURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", c.baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + streamPath
	return u.String(), nil
}
