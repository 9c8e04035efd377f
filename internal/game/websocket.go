package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/scythe504/winenight-backend/internal"
	"github.com/scythe504/winenight-backend/internal/utils"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 << 10
)

// =============================================================================
// GORILLA SOCKET
// =============================================================================

type websocketConnection struct {
	socket *websocket.Conn
}

func NewWebsocketConnection(conn *websocket.Conn) Socket {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &websocketConnection{socket: conn}
}

func (wc *websocketConnection) Read() ([]byte, error) {
	_, p, err := wc.socket.ReadMessage()
	return p, err
}

func (wc *websocketConnection) Write(data []byte) error {
	_ = wc.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return wc.socket.WriteMessage(websocket.TextMessage, data)
}

func (wc *websocketConnection) Ping() error {
	_ = wc.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return wc.socket.WriteMessage(websocket.PingMessage, nil)
}

func (wc *websocketConnection) Close(reason string) {
	_ = wc.socket.SetWriteDeadline(time.Now().Add(writeWait))
	_ = wc.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
	_ = wc.socket.Close()
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is one live connection. Outbound messages go through a buffered
// queue drained by writePump; a client whose queue is full is dropped.
type Client struct {
	ID      string
	socket  Socket
	send    chan []byte
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
	reason string
}

func newClient(id string, socket Socket, buffer int, limiter *rate.Limiter) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		ID:      id,
		socket:  socket,
		send:    make(chan []byte, buffer),
		limiter: limiter,
	}
}

// Send queues data without blocking and reports whether it was queued.
func (c *Client) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		log.Warn().Str("conn", c.ID).Msg("[Client.Send] outbox full, dropping slow client")
		c.closeLocked("slow consumer")
		return false
	}
}

// Close stops the client after its queued messages are written.
func (c *Client) Close(reason string) {
	c.mu.Lock()
	c.closeLocked(reason)
	c.mu.Unlock()
}

func (c *Client) closeLocked(reason string) {
	if c.closed {
		return
	}
	c.closed = true
	c.reason = reason
	close(c.send)
}

func (c *Client) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.mu.Lock()
				reason := c.reason
				c.mu.Unlock()
				c.socket.Close(reason)
				return
			}
			if err := c.socket.Write(data); err != nil {
				log.Debug().Err(err).Str("conn", c.ID).Msg("[writePump] write failed")
				c.Close("write failed")
				c.socket.Close("write failed")
				return
			}
		case <-ticker.C:
			if err := c.socket.Ping(); err != nil {
				c.Close("ping failed")
				c.socket.Close("ping failed")
				return
			}
		}
	}
}

// =============================================================================
// WEBSOCKET CONNECTION HANDLING
// =============================================================================

// NewUpgrader accepts same-origin requests, requests without an Origin
// header and any origin in allowed. A "*" entry accepts everything.
func NewUpgrader(allowed []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
				return true
			}
			return origin == "http://"+r.Host || origin == "https://"+r.Host
		},
	}
}

// HandleWebSocket upgrades the request and serves the connection until it
// closes.
func (m *Manager) HandleWebSocket(upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("[HandleWebSocket] upgrade failed")
			return
		}
		m.Serve(NewWebsocketConnection(conn))
	}
}

// Serve registers socket as a new client, starts its writer and blocks in
// the read loop. The client is disconnected from its room on return.
func (m *Manager) Serve(socket Socket) {
	c := m.Attach(socket)
	go c.writePump()
	m.readPump(c)
}

// Attach registers a client for socket without starting any goroutines.
func (m *Manager) Attach(socket Socket) *Client {
	var limiter *rate.Limiter
	if m.opts.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(m.opts.MessagesPerSecond), m.opts.MessageBurst)
	}
	c := newClient(utils.NewConnectionID(), socket, m.opts.SendBuffer, limiter)
	m.registry.Register(c)
	log.Debug().Str("conn", c.ID).Msg("[Attach] connection registered")
	return c
}

func (m *Manager) readPump(c *Client) {
	defer func() {
		m.Disconnect(c.ID)
		c.Close("connection closed")
	}()

	for {
		raw, err := c.socket.Read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn", c.ID).Msg("[readPump] unexpected close")
			}
			return
		}
		m.Dispatch(m.baseCtx, c, raw)
	}
}

// Dispatch decodes one inbound message and routes it. Every failure becomes
// an error event for this connection only.
func (m *Manager) Dispatch(ctx context.Context, c *Client, raw []byte) {
	if !c.allow() {
		m.sendError(c.ID, "", internal.ErrRateLimited)
		return
	}

	var msg internal.InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		m.sendError(c.ID, "", fmt.Errorf("%w: malformed message: %w", internal.ErrBadRequest, err))
		return
	}

	log.Debug().Str("conn", c.ID).Str("type", msg.Type).Msg("[Dispatch] message received")

	var err error
	switch msg.Type {
	case internal.EventCreateRoom:
		var req internal.CreateRoomRequest
		if err = decode(msg.Data, &req); err == nil {
			err = m.CreateRoom(ctx, c.ID, req)
		}
	case internal.EventJoinRoom:
		var req internal.JoinRoomRequest
		if err = decode(msg.Data, &req); err == nil {
			err = m.JoinRoom(ctx, c.ID, req)
		}
	case internal.EventStartGame:
		err = m.StartGame(ctx, c.ID)
	case internal.EventSetRoundAnswer:
		var req internal.SetRoundAnswerRequest
		if err = decode(msg.Data, &req); err == nil {
			err = m.SetRoundAnswer(ctx, c.ID, req)
		}
	case internal.EventActivateRound:
		var req internal.ActivateRoundRequest
		if err = decode(msg.Data, &req); err == nil {
			err = m.ActivateRound(ctx, c.ID, req)
		}
	case internal.EventSubmitGuess:
		var req internal.SubmitGuessRequest
		if err = decode(msg.Data, &req); err == nil {
			err = m.SubmitGuess(ctx, c.ID, req)
		}
	case internal.EventCloseRound:
		var req internal.CloseRoundRequest
		if err = decode(msg.Data, &req); err == nil {
			err = m.CloseRound(ctx, c.ID, req)
		}
	default:
		err = internal.WithMessage(internal.ErrBadRequest, "Unknown message type")
	}

	if err != nil {
		m.sendError(c.ID, msg.Type, err)
	}
}

// decode accepts a missing data field for requests whose fields are all
// optional.
func decode(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return fmt.Errorf("%w: %w", internal.ErrBadRequest, err)
		}
		return internal.WithMessage(internal.ErrBadRequest, "Invalid request fields")
	}
	return nil
}
