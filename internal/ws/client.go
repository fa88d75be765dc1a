package ws

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
)

// ConnState is the lifecycle state of a connection.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateJoined
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Client is one live connection owned by this instance.
type Client struct {
	Info      ConnInfo
	User      models.UserRef
	Namespace models.Namespace

	conn  *websocket.Conn
	state atomic.Int32

	mu     sync.Mutex
	rooms  map[string]struct{}
	send   chan []byte
	closed bool
}

// NewClient wraps conn. A nil conn yields a client whose outbound frames are
// only observable through Outbound.
func NewClient(conn *websocket.Conn, ns models.Namespace, user models.UserRef, info ConnInfo, bufferSize int) *Client {
	if info.ConnID == "" {
		info.ConnID = newConnID()
	}
	if info.UserID == "" {
		info.UserID = user.ID
	}
	if info.ConnectedAt.IsZero() {
		info.ConnectedAt = time.Now()
	}
	return &Client{
		Info:      info,
		User:      user,
		Namespace: ns,
		conn:      conn,
		rooms:     make(map[string]struct{}),
		send:      make(chan []byte, bufferSize),
	}
}

func (c *Client) ID() string { return c.Info.ConnID }

func (c *Client) UserID() string { return c.User.ID }

func (c *Client) State() ConnState { return ConnState(c.state.Load()) }

// Transition moves the client from one state to another, reporting whether it
// was in from.
func (c *Client) Transition(from, to ConnState) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

// Rooms returns a sorted snapshot of the joined rooms.
func (c *Client) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

func (c *Client) addRoom(room string) {
	c.mu.Lock()
	c.rooms[room] = struct{}{}
	c.mu.Unlock()
}

// Deliver queues an encoded frame without blocking. A client whose buffer is
// full is closed; it will be unregistered by its disconnect path.
func (c *Client) Deliver(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.closed = true
		close(c.send)
		observability.IncSlowConsumer()
		return false
	}
}

// Send encodes data under event and delivers it to this client only.
func (c *Client) Send(event string, data any) bool {
	frame, err := models.EncodeFrame(event, data)
	if err != nil {
		return false
	}
	return c.Deliver(frame)
}

// Outbound exposes the frame queue; it is closed when the client closes.
func (c *Client) Outbound() <-chan []byte { return c.send }

// Close stops accepting frames. The write pump flushes what is queued and
// closes the socket.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// WritePump drains the outbound queue to the socket and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
