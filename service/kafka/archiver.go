package kafka

import (
	"encoding/json"

	"SupportChat/logger"
	"SupportChat/module/support/model"

	"github.com/Shopify/sarama"
)

type Config struct {
	Brokers []string
	Topic   string
}

// Archiver publishes every persisted chat message to a Kafka topic
// for downstream archival/analytics consumers. Async and
// fire-and-forget: routing already succeeded by the time a message
// lands here, a broker outage only loses the copy.
type Archiver struct {
	p     sarama.AsyncProducer
	topic string
}

func NewArchiver(cfg Config) (*Archiver, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = sarama.WaitForLocal

	p, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, err
	}
	a := &Archiver{p: p, topic: cfg.Topic}

	go func() {
		for perr := range p.Errors() {
			logger.Warnf("[kafka] archive error topic=%s err=%v", perr.Msg.Topic, perr.Err)
		}
	}()
	return a, nil
}

// Archive keys by conversation id so one conversation stays on one
// partition, preserving per-conversation order for consumers.
func (a *Archiver) Archive(msg *model.ChatMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		logger.Warnf("[kafka] marshal message %s: %v", msg.MessageID, err)
		return
	}
	a.p.Input() <- &sarama.ProducerMessage{
		Topic: a.topic,
		Key:   sarama.StringEncoder(msg.ConversationID),
		Value: sarama.ByteEncoder(b),
	}
}

func (a *Archiver) Close() error {
	return a.p.Close()
}
