package events

import (
	"context"
	"errors"
	"time"

	"bgRemover/worker/models"
)

type Type string

const (
	TypeIngested   Type = "item.ingested"
	TypeProcessing Type = "item.processing"
	TypeDone       Type = "item.done"
	TypeFailed     Type = "item.failed"
	TypeRequeued   Type = "item.requeued"
	TypeDeleted    Type = "item.deleted"
	TypeCleared    Type = "items.cleared"
)

// Event describes a single item store transition.
type Event struct {
	Type      Type              `json:"type"`
	ItemID    string            `json:"item_id,omitempty"`
	Name      string            `json:"name,omitempty"`
	Status    models.ItemStatus `json:"status,omitempty"`
	Progress  int               `json:"progress"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// FromItem builds an event of the given type from an item snapshot.
func FromItem(t Type, item models.Item) Event {
	return Event{
		Type:      t,
		ItemID:    item.ID,
		Name:      item.DisplayName,
		Status:    item.Status,
		Progress:  item.Progress,
		Error:     item.Error,
		Timestamp: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

type PublisherFunc func(ctx context.Context, evt Event) error

func (f PublisherFunc) Publish(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

type nop struct{}

func (nop) Publish(context.Context, Event) error { return nil }

// Nop discards every event.
var Nop Publisher = nop{}

// Multi fans an event out to every publisher and joins their errors.
func Multi(publishers ...Publisher) Publisher {
	return PublisherFunc(func(ctx context.Context, evt Event) error {
		var errs []error
		for _, p := range publishers {
			if err := p.Publish(ctx, evt); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
