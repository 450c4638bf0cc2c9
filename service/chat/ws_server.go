package chat

import (
	"net"
	"net/http"
	"time"

	"SupportChat/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const handshakeWait = 10 * time.Second

// Gateway glues websocket transports onto the engine: one read loop
// per connection, frames dispatched in receipt order, a write loop
// per client, pongs acked into the heartbeat monitor.
type Gateway struct {
	srv       *Server
	disp      *Dispatcher
	sendQueue int
}

func NewGateway(srv *Server, sendQueueSize int) *Gateway {
	d := NewDispatcher()
	d.Register(JoinHandler{})
	d.Register(LeaveHandler{})
	d.Register(SendHandler{})
	d.Register(HistoryHandler{})
	return &Gateway{srv: srv, disp: d, sendQueue: sendQueueSize}
}

// HandleWS upgrades the request and runs the connection until the
// peer goes away. First frame must be the connect handshake; the
// principal arrives pre-authenticated, the gateway only records what
// it claims.
func (g *Gateway) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	client := NewClient(ws, g.sendQueue)

	payload, err := g.readConnect(ws)
	if err != nil {
		logger.Infof("[ws] handshake failed: %v", err)
		_ = ws.Close()
		return
	}

	connID, superseded, err := g.srv.Connect(payload.Identity, ParseRole(payload.Role), ConnectOpts{
		Meta:         payload.Meta,
		SessionToken: payload.SessionToken,
		ManualLogin:  payload.ManualLogin,
	}, client)
	if err != nil {
		logger.Infof("[ws] connect rejected identity=%s err=%v", payload.Identity, err)
		_ = ws.Close()
		return
	}
	client.ConnID = connID

	go client.WriteLoop()
	client.EnqueueFrame(BuildConnectAck(connID, superseded))

	// pong -> heartbeat ack; eviction is the monitor's call, so the
	// read side carries no deadline of its own
	ws.SetPongHandler(func(string) error {
		g.srv.HeartbeatAck(client.ConnID)
		return nil
	})
	_ = ws.SetReadDeadline(time.Time{})

	g.readLoop(client)

	g.srv.Disconnect(client.ConnID, "peer closed")
	client.Close()
}

func (g *Gateway) readConnect(ws *websocket.Conn) (*ConnectPayload, error) {
	_ = ws.SetReadDeadline(time.Now().Add(handshakeWait))
	_, data, err := ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	f, err := ParseFrame(data)
	if err != nil {
		return nil, err
	}
	if f.Type != FrameConnect {
		return nil, errFirstFrame
	}
	return ExtractConnectPayload(f)
}

var errFirstFrame = &firstFrameError{}

type firstFrameError struct{}

func (*firstFrameError) Error() string { return "first frame must be connect" }

func (g *Gateway) readLoop(client *Client) {
	for {
		mt, data, rerr := client.ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed conn=%s", client.ConnID)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout conn=%s err=%v", client.ConnID, rerr)
			} else {
				logger.Infof("[ws] read err conn=%s err=%v", client.ConnID, rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		f, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[ws] bad frame conn=%s err=%v sample=%q", client.ConnID, perr, sample)
			continue
		}

		g.srv.TouchActivity(client.ConnID)
		if derr := g.disp.Dispatch(&Context{S: g.srv}, f, client); derr != nil {
			logger.Infof("[ws] dispatch conn=%s type=%s err=%v", client.ConnID, f.Type, derr)
		}
	}
}
