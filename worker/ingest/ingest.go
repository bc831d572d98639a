// Package ingest turns raw file payloads into pending store items.
package ingest

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bgRemover/worker/models"
	"bgRemover/worker/store"
	"bgRemover/worker/validation"
)

const defaultReadConcurrency = 8

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// File is a file-like payload with the metadata a browser file picker would expose.
type File struct {
	Name    string
	Size    int64
	ModTime time.Time
	Open    func() (io.ReadCloser, error)
}

type Ingester struct {
	store       *store.Store
	maxSize     int64
	concurrency int
	logger      *zap.Logger
}

func NewIngester(s *store.Store, maxSize int64, logger *zap.Logger) *Ingester {
	return &Ingester{
		store:       s,
		maxSize:     maxSize,
		concurrency: defaultReadConcurrency,
		logger:      logger,
	}
}

// Ingest reads every file concurrently and appends the accepted ones to the store
// in a single step, preserving input order. Rejected files are dropped without an item.
func (in *Ingester) Ingest(ctx context.Context, files []File) ([]models.Item, error) {
	if len(files) == 0 {
		return nil, nil
	}

	slots := make([]*models.Item, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item, err := in.read(f)
			if err != nil {
				in.logger.Debug("Skipping file",
					zap.String("name", f.Name),
					zap.Error(err),
				)
				return nil
			}
			slots[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingest batch: %w", err)
	}

	batch := make([]models.Item, 0, len(files))
	for _, it := range slots {
		if it != nil {
			batch = append(batch, *it)
		}
	}
	if len(batch) == 0 {
		return nil, nil
	}

	if err := in.store.Append(batch...); err != nil {
		return nil, fmt.Errorf("append batch: %w", err)
	}

	in.logger.Info("Batch ingested",
		zap.Int("files", len(files)),
		zap.Int("accepted", len(batch)),
	)

	return batch, nil
}

func (in *Ingester) read(f File) (*models.Item, error) {
	if f.Open == nil {
		return nil, validation.ErrEmptyFile
	}
	if in.maxSize > 0 && f.Size > in.maxSize {
		return nil, fmt.Errorf("%w: %s > %s", validation.ErrFileTooLarge,
			units.HumanSize(float64(f.Size)), units.HumanSize(float64(in.maxSize)))
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if in.maxSize > 0 {
		r = io.LimitReader(rc, in.maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}

	fileType, err := validation.ValidateImage(data, in.maxSize)
	if err != nil {
		return nil, err
	}

	size := f.Size
	if size <= 0 {
		size = int64(len(data))
	}

	return &models.Item{
		ID:          NewID(f.Name, size, f.ModTime),
		DisplayName: f.Name,
		SourceBytes: data,
		SourceType:  fileType.ContentType(),
		Status:      models.StatusPending,
	}, nil
}

// NewID combines the file metadata with a random suffix; identical re-uploads
// share every metadata field, so the suffix is what keeps them apart. Characters
// outside [A-Za-z0-9._-] become underscores so the id is a single clean path segment.
func NewID(name string, size int64, modTime time.Time) string {
	var millis int64
	if !modTime.IsZero() {
		millis = modTime.UnixMilli()
	}
	safe := unsafeIDChars.ReplaceAllString(name, "_")
	return fmt.Sprintf("%s-%d-%d-%s", safe, size, millis, randomSuffix())
}

func randomSuffix() string {
	u := uuid.New()
	return strconv.FormatUint(binary.BigEndian.Uint64(u[:8]), 36)
}
