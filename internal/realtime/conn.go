package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// CloseRejected is the close code of every refused room channel
// connection. The reason is only logged server side.
const CloseRejected = 4004

const (
	defaultWriteWait     = 10 * time.Second
	defaultPingPeriod    = 30 * time.Second
	defaultSendBuffer    = 128
	defaultMaxFrameBytes = 64 << 10
)

// ConnOptions tunes a connection. Zero values take defaults.
type ConnOptions struct {
	SendBuffer    int
	PingPeriod    time.Duration
	WriteWait     time.Duration
	MaxFrameBytes int64
}

func (o ConnOptions) withDefaults() ConnOptions {
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = defaultPingPeriod
	}
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = defaultMaxFrameBytes
	}
	return o
}

// Conn is one client socket on one room channel. Outbound frames go
// through a buffered queue drained by a single writer goroutine; a client
// that lets the queue fill up is disconnected.
type Conn struct {
	UserID string
	RoomID string

	ws   *websocket.Conn
	opts ConnOptions
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewConn wraps an upgraded socket.
func NewConn(ws *websocket.Conn, userID, roomID string, opts ConnOptions) *Conn {
	opts = opts.withDefaults()
	return &Conn{
		UserID: userID,
		RoomID: roomID,
		ws:     ws,
		opts:   opts,
		send:   make(chan []byte, opts.SendBuffer),
		done:   make(chan struct{}),
	}
}

// Send queues payload. It never blocks; a full queue closes the
// connection.
func (c *Conn) Send(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		// Close writes to the network; keep the caller non-blocking.
		go c.Close(websocket.ClosePolicyViolation, "send buffer full")
		return false
	}
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close sends a close frame with code and tears the socket down. Only the
// first call has an effect.
func (c *Conn) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(c.opts.WriteWait))
		_ = c.ws.Close()
	})
}

// Serve runs the connection until the peer leaves or Close is called.
// onFrame receives every text frame in order; onPong, when set, runs on
// every pong and is where liveness is refreshed.
func (c *Conn) Serve(onFrame func([]byte), onPong func()) {
	wsConnections.Inc()
	defer wsConnections.Dec()
	go c.writeLoop()
	defer c.Close(websocket.CloseNormalClosure, "")

	pongWait := c.opts.PingPeriod * 10 / 9
	c.ws.SetReadLimit(c.opts.MaxFrameBytes)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.ws.SetPongHandler(func(string) error {
		if onPong != nil {
			onPong()
		}
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		typ, b, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Debug().Err(err).Str("component", "realtime").
					Str("room_id", c.RoomID).Str("user_id", c.UserID).Msg("websocket read ended")
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		onFrame(b)
	}
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.Close(websocket.CloseGoingAway, "")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseGoingAway, "")
				return
			}
		}
	}
}

func (c *Conn) write(typ int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(typ, payload)
}

// Reject closes a freshly upgraded socket with CloseRejected.
func Reject(ws *websocket.Conn, reason string) {
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(CloseRejected, reason),
		time.Now().Add(defaultWriteWait))
	_ = ws.Close()
}
