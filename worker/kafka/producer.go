package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"

	"bgRemover/worker/events"
)

// Producer publishes item lifecycle events keyed by item id, so every event of
// one item lands on the same partition in order.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &Producer{producer: p, topic: topic}, nil
}

func newProducerFrom(p sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: p, topic: topic}
}

func (p *Producer) Publish(ctx context.Context, evt events.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(evt.Type)},
		},
	}
	if evt.ItemID != "" {
		msg.Key = sarama.StringEncoder(evt.ItemID)
	}

	_, _, err = p.producer.SendMessage(msg)
	return err
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
