package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout     = 10 * time.Second
	handshakeTimeout = 10 * time.Second
	pongTimeout      = 30 * time.Second
	pingInterval     = 10 * time.Second

	// eventBuffer bounds events queued behind a slow handler.
	eventBuffer = 100
)

// conn is one identified obs-websocket session.
type conn struct {
	ws  *websocket.Conn
	log Logger

	writeMu sync.Mutex // serialises all ws writes

	mu      sync.Mutex
	pending map[string]chan requestResponse
	closed  bool
	err     error

	events chan event
	done   chan struct{}

	// resync is signalled when an event had to be dropped.
	resync chan struct{}
}

// dial connects to url and completes the Hello/Identify handshake.
// The returned conn is already reading; events arrive on c.events.
func dial(ctx context.Context, dialer *websocket.Dialer, url, password string, log Logger) (*conn, error) {
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	if err := handshake(ws, password); err != nil {
		ws.Close() //nolint:errcheck // already failing
		return nil, err
	}

	c := &conn{
		ws:      ws,
		log:     log,
		pending: make(map[string]chan requestResponse),
		events:  make(chan event, eventBuffer),
		done:    make(chan struct{}),
		resync:  make(chan struct{}, 1),
	}

	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	ws.SetReadDeadline(time.Now().Add(pongTimeout)) //nolint:errcheck // surfaced by the next read

	go c.readLoop()
	go c.pingLoop()
	return c, nil
}

func handshake(ws *websocket.Conn, password string) error {
	ws.SetReadDeadline(time.Now().Add(handshakeTimeout)) //nolint:errcheck // surfaced by the next read

	var h hello
	if err := readOp(ws, opHello, &h); err != nil {
		return fmt.Errorf("%w: reading hello: %w", ErrHandshake, err)
	}

	id := identify{
		RPCVersion:         rpcVersion,
		EventSubscriptions: subscribeScenes | subscribeOutputs,
	}
	if h.Authentication != nil {
		if password == "" {
			return fmt.Errorf("%w: server requires a password", ErrAuthFailed)
		}
		id.Authentication = authResponse(password, h.Authentication.Salt, h.Authentication.Challenge)
	}

	ws.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck // surfaced by the write
	if err := ws.WriteJSON(frame{Op: opIdentify, D: id}); err != nil {
		return fmt.Errorf("%w: sending identify: %w", ErrHandshake, err)
	}

	var ack identified
	if err := readOp(ws, opIdentified, &ack); err != nil {
		if websocket.IsCloseError(err, closeAuthenticationFailed) {
			return fmt.Errorf("%w: %w", ErrAuthFailed, err)
		}
		return fmt.Errorf("%w: reading identified: %w", ErrHandshake, err)
	}
	return nil
}

// readOp reads one frame and decodes its payload into out, requiring op.
func readOp(ws *websocket.Conn, op int, out any) error {
	var env envelope
	if err := ws.ReadJSON(&env); err != nil {
		return err
	}
	if env.Op != op {
		return fmt.Errorf("unexpected op %d, want %d", env.Op, op)
	}
	return json.Unmarshal(env.D, out)
}

func (c *conn) readLoop() {
	defer close(c.events)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Debug("ignoring malformed frame", "error", err)
			continue
		}

		switch env.Op {
		case opRequestResponse:
			var resp requestResponse
			if err := json.Unmarshal(env.D, &resp); err != nil {
				c.log.Debug("ignoring malformed response", "error", err)
				continue
			}
			c.route(resp)

		case opEvent:
			var ev event
			if err := json.Unmarshal(env.D, &ev); err != nil {
				c.log.Debug("ignoring malformed event", "error", err)
				continue
			}
			c.enqueue(ev)
		}
	}
}

// enqueue hands ev to the handler without blocking. A dropped event may
// have been a scene or stream change, so the state is marked for resync.
func (c *conn) enqueue(ev event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn("event queue full, dropping event", "event_type", ev.EventType)
		c.markResync()
	}
}

func (c *conn) markResync() {
	select {
	case c.resync <- struct{}{}:
	default:
	}
}

func (c *conn) route(resp requestResponse) {
	c.mu.Lock()
	ch, ok := c.pending[resp.RequestID]
	delete(c.pending, resp.RequestID)
	c.mu.Unlock()

	if ok {
		ch <- resp
	}
}

func (c *conn) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck // surfaced by the write
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.shutdown(err)
				return
			}
		}
	}
}

// request sends requestType with data and decodes the response into out.
// out may be nil when the response carries nothing of interest.
func (c *conn) request(ctx context.Context, requestType string, data, out any) error {
	id := uuid.NewString()
	ch := make(chan requestResponse, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	msg := frame{Op: opRequest, D: request{RequestType: requestType, RequestID: id, RequestData: data}}

	c.writeMu.Lock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck // surfaced by the write
	err := c.ws.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		c.shutdown(err)
		return fmt.Errorf("sending %s: %w", requestType, err)
	}

	var resp requestResponse
	select {
	case resp = <-ch:
	case <-c.done:
		return fmt.Errorf("%s: %w", requestType, ErrNotConnected)
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", requestType, ctx.Err())
	}

	if !resp.RequestStatus.Result {
		return fmt.Errorf("%w: %s: code %d: %s",
			ErrRequestFailed, requestType, resp.RequestStatus.Code, resp.RequestStatus.Comment)
	}
	if out != nil && len(resp.ResponseData) > 0 {
		if err := json.Unmarshal(resp.ResponseData, out); err != nil {
			return fmt.Errorf("decoding %s response: %w", requestType, err)
		}
	}
	return nil
}

// shutdown marks the connection dead and closes the socket. Only the
// first cause is kept.
func (c *conn) shutdown(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.err = err
	c.mu.Unlock()

	close(c.done)
	c.ws.Close() //nolint:errcheck // best-effort
}

// Close sends a normal close frame and tears the connection down.
func (c *conn) Close() {
	c.writeMu.Lock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck // best-effort
	c.ws.WriteMessage(websocket.CloseMessage, //nolint:errcheck // best-effort
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	c.shutdown(errClosed)
}

// Err returns why the connection ended, or nil while it is alive.
func (c *conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

var errClosed = errors.New("broadcast: connection closed")
