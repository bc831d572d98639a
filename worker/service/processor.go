package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bgRemover/worker/events"
	"bgRemover/worker/handles"
	"bgRemover/worker/models"
	"bgRemover/worker/remover"
	"bgRemover/worker/store"
)

const resultContentType = "image/png"

var ErrNoSource = errors.New("item has no source payload")

// Processor runs one item through the remover and records the outcome in the store.
type Processor struct {
	store     *store.Store
	handles   *handles.Registry
	remover   remover.Remover
	config    remover.Config
	publisher events.Publisher
	logger    *zap.Logger
}

func NewProcessor(
	s *store.Store,
	h *handles.Registry,
	r remover.Remover,
	cfg remover.Config,
	publisher events.Publisher,
	logger *zap.Logger,
) *Processor {
	if publisher == nil {
		publisher = events.Nop
	}
	return &Processor{
		store:     s,
		handles:   h,
		remover:   r,
		config:    cfg,
		publisher: publisher,
		logger:    logger,
	}
}

// Process claims the item, invokes the remover and stores the result. Any failure
// ends in the failed state for this item only.
func (p *Processor) Process(ctx context.Context, itemID string) error {
	item, err := p.store.Claim(itemID)
	if err != nil {
		p.logger.Warn("Skipping item", zap.String("item_id", itemID), zap.Error(err))
		return err
	}
	p.publish(ctx, events.FromItem(events.TypeProcessing, item))

	start := time.Now()
	p.logger.Info("Processing started",
		zap.String("item_id", itemID),
		zap.String("name", item.DisplayName),
		zap.Int("source_bytes", len(item.SourceBytes)),
	)

	result, err := p.remove(ctx, item)
	if err != nil {
		return p.fail(ctx, item, err, time.Since(start))
	}

	handle := p.handles.Mint(itemID, result, resultContentType)
	done, err := p.store.Complete(itemID, result, handle)
	if err != nil {
		p.handles.Revoke(itemID)
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Info("Item removed while processing", zap.String("item_id", itemID))
			return err
		}
		return p.fail(ctx, item, err, time.Since(start))
	}

	p.logger.Info("Processing completed",
		zap.String("item_id", itemID),
		zap.Int("result_bytes", len(result)),
		zap.Duration("duration", time.Since(start)),
	)
	p.publish(ctx, events.FromItem(events.TypeDone, done))
	return nil
}

func (p *Processor) remove(ctx context.Context, item models.Item) (out []byte, err error) {
	if len(item.SourceBytes) == 0 {
		return nil, ErrNoSource
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("remover panicked: %v", r)
		}
	}()

	cfg := p.config
	cfg.Progress = func(percent int) {
		if err := p.store.SetProgress(item.ID, percent); err != nil {
			p.logger.Debug("Progress update rejected",
				zap.String("item_id", item.ID),
				zap.Int("progress", percent),
				zap.Error(err),
			)
		}
	}

	out, err = p.remover.Remove(ctx, item.SourceBytes, cfg)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, remover.ErrEmptyOutput
	}
	return out, nil
}

func (p *Processor) fail(ctx context.Context, item models.Item, cause error, elapsed time.Duration) error {
	p.logger.Error("Processing failed",
		zap.String("item_id", item.ID),
		zap.String("name", item.DisplayName),
		zap.Duration("duration", elapsed),
		zap.Error(cause),
	)

	failed, err := p.store.Fail(item.ID, cause.Error())
	if err != nil {
		p.logger.Warn("Could not mark item failed", zap.String("item_id", item.ID), zap.Error(err))
		return errors.Join(cause, err)
	}
	p.publish(ctx, events.FromItem(events.TypeFailed, failed))
	return cause
}

func (p *Processor) publish(ctx context.Context, evt events.Event) {
	if err := p.publisher.Publish(ctx, evt); err != nil {
		p.logger.Warn("Failed to publish event",
			zap.String("type", string(evt.Type)),
			zap.String("item_id", evt.ItemID),
			zap.Error(err),
		)
	}
}
