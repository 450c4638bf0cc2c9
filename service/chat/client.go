package chat

import (
	"sync"
	"time"

	"SupportChat/logger"
	"SupportChat/module/support/model"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Client wraps one websocket connection on the gateway. It is the
// Sink the engine delivers into: every outbound frame goes through a
// bounded Send queue drained by a single writer goroutine, so a slow
// client drops frames instead of blocking the engine.
type Client struct {
	ConnID string // set once the handshake registered

	ws   *websocket.Conn
	Send chan []byte

	quit      chan struct{}
	closeOnce sync.Once
}

func NewClient(ws *websocket.Conn, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 256
	}
	return &Client{
		ws:   ws,
		Send: make(chan []byte, sendQueueSize),
		quit: make(chan struct{}),
	}
}

// ===== Sink =====

func (c *Client) DeliverMessage(msg *model.ChatMessage) {
	c.EnqueueFrame(BuildDeliver(msg))
}

func (c *Client) DeliverPresence(ev PresenceEvent) {
	c.EnqueueFrame(BuildPresence(ev))
}

// Ping sends a websocket control ping as the liveness probe. Control
// writes are safe concurrently with the writer goroutine.
func (c *Client) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait))
}

// Kick queues the forced-disconnect notice and shuts the writer down;
// the queued frames (kick included) are flushed before the close
// handshake.
func (c *Client) Kick(reason string) {
	c.EnqueueFrame(BuildKick(reason))
	c.Close()
}

// ===== outbound =====

func (c *Client) EnqueueFrame(f *Frame) {
	c.enqueue(EncodeFrame(f))
}

func (c *Client) enqueue(payload []byte) {
	select {
	case c.Send <- payload:
	default:
		logger.Warnf("[ws] send queue full, drop frame conn=%s", c.ConnID)
	}
}

// Close stops the writer; safe to call more than once and from any
// goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
}

// WriteLoop is the single writer goroutine. On quit it flushes what
// is queued, sends the close handshake, and closes the socket.
func (c *Client) WriteLoop() {
	defer func() {
		c.flush()
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.ws.Close()
	}()

	for {
		select {
		case payload := <-c.Send:
			if err := c.write(payload); err != nil {
				logger.Infof("[ws] write err conn=%s err=%v", c.ConnID, err)
				return
			}
		case <-c.quit:
			return
		}
	}
}

func (c *Client) write(payload []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) flush() {
	for {
		select {
		case payload := <-c.Send:
			if err := c.write(payload); err != nil {
				return
			}
		default:
			return
		}
	}
}
