// Package session wires the item store, ingestion, handle registry, queue and exporters
// into one pipeline instance whose lifetime is a single user session.
package session

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"bgRemover/worker/events"
	"bgRemover/worker/export"
	"bgRemover/worker/handles"
	"bgRemover/worker/ingest"
	"bgRemover/worker/models"
	"bgRemover/worker/pool"
	"bgRemover/worker/remover"
	"bgRemover/worker/service"
	"bgRemover/worker/store"
)

var ErrClosed = errors.New("session closed")

type Options struct {
	Remover          remover.Remover
	RemoverConfig    remover.Config
	Publisher        events.Publisher
	MaxUploadSize    int64
	CompressionLevel int
	SpoolDir         string
}

type Status struct {
	Busy     bool
	Waiting  int
	InFlight int
	Total    int
	Counts   map[models.ItemStatus]int
	Handles  handles.Stats
}

type Session struct {
	store     *store.Store
	handles   *handles.Registry
	ingester  *ingest.Ingester
	queue     *pool.Queue
	exporter  *export.Exporter
	publisher events.Publisher
	spoolDir  string
	logger    *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

func New(opts Options, logger *zap.Logger) *Session {
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.Nop
	}

	st := store.New()
	reg := handles.NewRegistry(logger.Named("handles"))
	proc := service.NewProcessor(st, reg, opts.Remover, opts.RemoverConfig, publisher, logger.Named("processor"))

	return &Session{
		store:     st,
		handles:   reg,
		ingester:  ingest.NewIngester(st, opts.MaxUploadSize, logger.Named("ingest")),
		queue:     pool.NewQueue(proc.Process, logger.Named("queue")),
		exporter:  export.NewExporter(opts.CompressionLevel, logger.Named("export")),
		publisher: publisher,
		spoolDir:  opts.SpoolDir,
		logger:    logger,
		closed:    make(chan struct{}),
	}
}

// Start launches the processing worker.
func (s *Session) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Ingest adds a batch of files and schedules every accepted item.
func (s *Session) Ingest(ctx context.Context, files []ingest.File) ([]models.Item, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	batch, err := s.ingester.Ingest(ctx, files)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(batch))
	for _, it := range batch {
		ids = append(ids, it.ID)
		s.publish(ctx, events.FromItem(events.TypeIngested, it))
	}
	s.queue.Enqueue(ids...)
	return batch, nil
}

// Retry sends a failed item back through the queue.
func (s *Session) Retry(ctx context.Context, id string) (models.Item, error) {
	if s.isClosed() {
		return models.Item{}, ErrClosed
	}

	item, err := s.store.Requeue(id)
	if err != nil {
		return models.Item{}, err
	}
	s.publish(ctx, events.FromItem(events.TypeRequeued, item))
	s.queue.Enqueue(id)
	return item, nil
}

func (s *Session) Items() []models.Item {
	return s.store.List()
}

func (s *Session) Item(id string) (models.Item, error) {
	return s.store.Get(id)
}

// Delete removes an item and revokes its display handle.
func (s *Session) Delete(ctx context.Context, id string) error {
	item, err := s.store.Delete(id)
	if err != nil {
		return err
	}
	s.queue.Remove(id)
	s.handles.Revoke(id)

	s.publish(ctx, events.FromItem(events.TypeDeleted, item))
	s.logger.Info("Deleted item", zap.String("item_id", id))
	return nil
}

// Clear removes every item and revokes every handle.
func (s *Session) Clear(ctx context.Context) int {
	s.queue.Clear()
	removed := s.store.Clear()
	for _, it := range removed {
		s.handles.Revoke(it.ID)
	}

	s.publish(ctx, events.Event{Type: events.TypeCleared})
	s.logger.Info("Cleared all images", zap.Int("count", len(removed)))
	return len(removed)
}

// Resolve returns the payload behind a live display handle token.
func (s *Session) Resolve(token string) ([]byte, string, error) {
	return s.handles.Resolve(token)
}

// ExportOne writes the processed image of one item.
func (s *Session) ExportOne(w io.Writer, id string) (string, error) {
	item, err := s.store.Get(id)
	if err != nil {
		return "", err
	}
	return s.exporter.WriteOne(w, item)
}

// ExportArchive streams every processed image into w as a zip archive.
func (s *Session) ExportArchive(w io.Writer) (string, export.Summary, error) {
	summary, err := s.exporter.WriteArchive(w, s.store.Ready())
	if err != nil {
		return "", summary, err
	}
	return s.exporter.ArchiveName(), summary, nil
}

// SpoolArchive builds the archive into a temporary file owned by the caller.
func (s *Session) SpoolArchive() (*export.Spool, error) {
	return s.exporter.SpoolArchive(s.spoolDir, s.store.Ready())
}

func (s *Session) Status() Status {
	return Status{
		Busy:     s.queue.Busy(),
		Waiting:  s.queue.Len(),
		InFlight: s.queue.InFlight(),
		Total:    s.store.Len(),
		Counts:   s.store.Counts(),
		Handles:  s.handles.Stats(),
	}
}

// WaitIdle blocks until every scheduled item has been attempted.
func (s *Session) WaitIdle(ctx context.Context) error {
	return s.queue.WaitIdle(ctx)
}

// Close stops the worker and revokes every outstanding handle. Items stay in memory.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.queue.Shutdown()
		n := s.handles.RevokeAll()
		s.logger.Info("Session closed", zap.Int("revoked_handles", n))
	})
	return nil
}

func (s *Session) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *Session) publish(ctx context.Context, evt events.Event) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("type", string(evt.Type)),
			zap.Error(err),
		)
	}
}
