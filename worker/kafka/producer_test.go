package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"bgRemover/worker/events"
	"bgRemover/worker/models"
)

func TestProducer_Publish(t *testing.T) {
	mock := mocks.NewSyncProducer(t, sarama.NewConfig())
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var evt events.Event
		if err := json.Unmarshal(val, &evt); err != nil {
			return err
		}
		if evt.Type != events.TypeDone || evt.ItemID != "a" || evt.Status != models.StatusDone {
			return errors.New("unexpected event payload")
		}
		return nil
	})

	p := newProducerFrom(mock, "bgremover.items")
	defer p.Close()

	err := p.Publish(context.Background(), events.Event{
		Type:     events.TypeDone,
		ItemID:   "a",
		Status:   models.StatusDone,
		Progress: 100,
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
}

func TestProducer_PublishError(t *testing.T) {
	mock := mocks.NewSyncProducer(t, sarama.NewConfig())
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := newProducerFrom(mock, "bgremover.items")
	defer p.Close()

	err := p.Publish(context.Background(), events.Event{Type: events.TypeCleared})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Errorf("Expected ErrOutOfBrokers, got %v", err)
	}
}
