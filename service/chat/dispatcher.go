package chat

import (
	"fmt"

	"github.com/golang/glog"
)

// Context handed to frame handlers.
type Context struct {
	S *Server
}

type Handler interface {
	Type() FrameType
	Handle(ctx *Context, f *Frame, c *Client) error
}

type Dispatcher struct {
	handlers map[FrameType]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[FrameType]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Type()] = h }

func (d *Dispatcher) Dispatch(ctx *Context, f *Frame, c *Client) error {
	h, ok := d.handlers[f.Type]
	if !ok {
		glog.Infof("no handler for frame type=%s", f.Type)
		return fmt.Errorf("no handler for frame type=%s", f.Type)
	}
	return h.Handle(ctx, f, c)
}
