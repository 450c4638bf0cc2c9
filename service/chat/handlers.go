package chat

import (
	"context"
	"time"
)

// Frame handlers behind the dispatcher. Rejections (closed or missing
// conversation, persistence failure) are reported back to the sender
// as error frames, never silently dropped, so they return nil after
// answering.

const handleTimeout = 5 * time.Second

type JoinHandler struct{}

func (JoinHandler) Type() FrameType { return FrameJoin }

func (JoinHandler) Handle(ctx *Context, f *Frame, c *Client) error {
	if err := ctx.S.JoinRoom(c.ConnID, f.ConversationID); err != nil {
		c.EnqueueFrame(BuildError(f.ConversationID, err))
	}
	return nil
}

type LeaveHandler struct{}

func (LeaveHandler) Type() FrameType { return FrameLeave }

func (LeaveHandler) Handle(ctx *Context, f *Frame, c *Client) error {
	// leaving stops future delivery immediately; frames already in
	// the send queue are not retracted
	ctx.S.LeaveRoom(c.ConnID, f.ConversationID)
	return nil
}

type SendHandler struct{}

func (SendHandler) Type() FrameType { return FrameSend }

func (SendHandler) Handle(ctx *Context, f *Frame, c *Client) error {
	rctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	msg, err := ctx.S.SendMessage(rctx, c.ConnID, f.ConversationID, f.Body)
	if err != nil {
		c.EnqueueFrame(BuildError(f.ConversationID, err))
		return nil
	}
	c.EnqueueFrame(BuildSendAck(msg))
	return nil
}

type HistoryHandler struct{}

func (HistoryHandler) Type() FrameType { return FrameHistory }

func (HistoryHandler) Handle(ctx *Context, f *Frame, c *Client) error {
	rctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	msgs, err := ctx.S.History(rctx, c.ConnID, f.ConversationID)
	if err != nil {
		c.EnqueueFrame(BuildError(f.ConversationID, err))
		return nil
	}
	// redelivery goes to the requesting connection only
	c.EnqueueFrame(BuildHistory(f.ConversationID, msgs))
	return nil
}
