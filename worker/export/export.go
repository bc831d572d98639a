// Package export writes processed images out, one at a time or bundled into a zip archive.
package export

import (
	"archive/zip"
	"compress/flate"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"bgRemover/worker/models"
	"bgRemover/worker/validation"
)

// DefaultCompression trades speed and ratio evenly.
const DefaultCompression = 6

type Entry struct {
	ItemID string
	Name   string
	Size   int
}

type Summary struct {
	Entries []Entry
	Skipped []string
}

type Exporter struct {
	level  int
	now    func() time.Time
	logger *zap.Logger
}

func NewExporter(level int, logger *zap.Logger) *Exporter {
	if level < flate.BestSpeed || level > flate.BestCompression {
		level = DefaultCompression
	}
	return &Exporter{level: level, now: time.Now, logger: logger}
}

func (e *Exporter) ArchiveName() string {
	return ArchiveName(e.now())
}

// WriteOne writes a single processed image and returns its download name.
func (e *Exporter) WriteOne(w io.Writer, item models.Item) (string, error) {
	if !item.HasResult() {
		e.logger.Error("No processed result available for download", zap.String("item_id", item.ID))
		return "", ErrNoResult
	}

	name := FileName(item.DisplayName)
	if _, err := w.Write(item.ResultBytes); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}

	e.logger.Info("Downloaded", zap.String("item_id", item.ID), zap.String("file", name))
	return name, nil
}

// WriteArchive streams one zip entry per item with result bytes. Items whose payload
// cannot be added are skipped; the call fails only when nothing was added.
func (e *Exporter) WriteArchive(w io.Writer, items []models.Item) (Summary, error) {
	var ready []models.Item
	for _, it := range items {
		if it.HasResult() {
			ready = append(ready, it)
		}
	}
	if len(ready) == 0 {
		e.logger.Warn("No processed images available for download")
		return Summary{}, ErrEmptyArchive
	}

	e.logger.Info("Starting archive", zap.Int("images", len(ready)))

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, e.level)
	})

	var (
		summary Summary
		lastErr error
		names   = uniqueNames{}
		stamp   = e.now()
	)
	for _, it := range ready {
		if err := checkPayload(it); err != nil {
			e.logger.Warn("Skipping item", zap.String("item_id", it.ID), zap.Error(err))
			summary.Skipped = append(summary.Skipped, it.ID)
			lastErr = err
			continue
		}

		name := names.take(FileName(it.DisplayName))
		header := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: stamp,
		}
		entry, err := zw.CreateHeader(header)
		if err != nil {
			return summary, fmt.Errorf("create entry %s: %w", name, err)
		}
		if _, err := entry.Write(it.ResultBytes); err != nil {
			return summary, fmt.Errorf("write entry %s: %w", name, err)
		}

		summary.Entries = append(summary.Entries, Entry{ItemID: it.ID, Name: name, Size: len(it.ResultBytes)})
		e.logger.Debug("Added to archive", zap.String("file", name), zap.Int("bytes", len(it.ResultBytes)))
	}

	if len(summary.Entries) == 0 {
		return summary, fmt.Errorf("%w: %v", ErrArchiveFailed, lastErr)
	}

	if err := zw.Close(); err != nil {
		return summary, fmt.Errorf("finish archive: %w", err)
	}

	e.logger.Info("Archive generated",
		zap.Int("entries", len(summary.Entries)),
		zap.Int("skipped", len(summary.Skipped)),
	)
	return summary, nil
}

// Spool is an archive written to a temporary file, released with Close.
type Spool struct {
	File    *os.File
	Name    string
	Size    int64
	Summary Summary
}

// SpoolArchive writes the archive to a temp file in dir so it can be streamed out
// without holding the encoded archive in memory.
func (e *Exporter) SpoolArchive(dir string, items []models.Item) (*Spool, error) {
	f, err := os.CreateTemp(dir, "archive-*.zip")
	if err != nil {
		return nil, fmt.Errorf("create spool: %w", err)
	}

	summary, err := e.WriteArchive(f, items)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}

	size, err := f.Seek(0, io.SeekCurrent)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("rewind spool: %w", err)
	}

	return &Spool{File: f, Name: e.ArchiveName(), Size: size, Summary: summary}, nil
}

func (s *Spool) Close() error {
	err := s.File.Close()
	if rmErr := os.Remove(s.File.Name()); rmErr != nil && !os.IsNotExist(rmErr) {
		return rmErr
	}
	return err
}

func checkPayload(it models.Item) error {
	if !it.HasResult() {
		return ErrNoResult
	}
	if _, err := validation.DetectFileType(it.ResultBytes); err != nil {
		return fmt.Errorf("corrupt result payload: %w", err)
	}
	return nil
}
