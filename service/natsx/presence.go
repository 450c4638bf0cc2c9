package natsx

import (
	"encoding/json"

	"SupportChat/logger"
	"SupportChat/service/chat"
)

// PresenceExporter mirrors connect/reconnect/disconnect events onto a
// NATS subject for consumers that are not connected to the gateway
// over websocket (ops tooling, audit). Fire-and-forget.
type PresenceExporter struct {
	c       *Client
	subject string
}

func NewPresenceExporter(c *Client, subject string) *PresenceExporter {
	if subject == "" {
		subject = "presence.events"
	}
	return &PresenceExporter{c: c, subject: subject}
}

func (p *PresenceExporter) Export(ev chat.PresenceEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		logger.Warnf("[natsx] marshal presence event: %v", err)
		return
	}
	if err := p.c.Publish(p.subject, b); err != nil {
		logger.Warnf("[natsx] publish presence event: %v", err)
	}
}
