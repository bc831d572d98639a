package export

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"bgRemover/worker/models"
)

var pngPayload = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func doneItem(id, name string, data []byte) models.Item {
	return models.Item{
		ID:           id,
		DisplayName:  name,
		Status:       models.StatusDone,
		Progress:     100,
		ResultBytes:  data,
		ResultHandle: "/handles/" + id,
	}
}

func newTestExporter(t *testing.T) *Exporter {
	e := NewExporter(DefaultCompression, zaptest.NewLogger(t))
	e.now = func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) }
	return e
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		if f.Method != zip.Deflate {
			t.Errorf("Entry %s not deflated", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Failed to open entry %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("Failed to read entry %s: %v", f.Name, err)
		}
		out[f.Name] = b
	}
	return out
}

func TestWriteOne(t *testing.T) {
	e := newTestExporter(t)
	var buf bytes.Buffer

	name, err := e.WriteOne(&buf, doneItem("a", "cat photo.png", pngPayload))
	if err != nil {
		t.Fatalf("WriteOne failed: %v", err)
	}
	if name != "cat_photo-no-bg.png" {
		t.Errorf("Unexpected name %q", name)
	}
	if !bytes.Equal(buf.Bytes(), pngPayload) {
		t.Error("Written bytes differ from result")
	}
}

func TestWriteOne_NoResult(t *testing.T) {
	e := newTestExporter(t)
	var buf bytes.Buffer

	_, err := e.WriteOne(&buf, models.Item{ID: "a", DisplayName: "a.png", Status: models.StatusFailed})
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("Expected ErrNoResult, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("Nothing should be written without a result")
	}
}

func TestWriteArchive_EntryPerReadyItem(t *testing.T) {
	e := newTestExporter(t)
	items := []models.Item{
		doneItem("a", "one.png", pngPayload),
		{ID: "b", DisplayName: "two.png", Status: models.StatusFailed, Error: "boom"},
		doneItem("c", "three.jpg", pngPayload),
		{ID: "d", DisplayName: "four.png", Status: models.StatusPending},
	}

	var buf bytes.Buffer
	summary, err := e.WriteArchive(&buf, items)
	if err != nil {
		t.Fatalf("WriteArchive failed: %v", err)
	}
	if len(summary.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(summary.Entries))
	}

	entries := readArchive(t, buf.Bytes())
	for _, name := range []string{"one-no-bg.png", "three-no-bg.png"} {
		data, ok := entries[name]
		if !ok {
			t.Errorf("Missing entry %s", name)
			continue
		}
		if !bytes.Equal(data, pngPayload) {
			t.Errorf("Entry %s content mismatch", name)
		}
	}
}

func TestWriteArchive_DuplicateNamesStayDistinct(t *testing.T) {
	e := newTestExporter(t)
	items := []models.Item{
		doneItem("a", "cat photo.png", pngPayload),
		doneItem("b", "cat photo.png", append([]byte{}, pngPayload...)),
		doneItem("c", "cat photo.jpeg", pngPayload),
	}

	var buf bytes.Buffer
	if _, err := e.WriteArchive(&buf, items); err != nil {
		t.Fatalf("WriteArchive failed: %v", err)
	}

	entries := readArchive(t, buf.Bytes())
	if len(entries) != 3 {
		t.Fatalf("Expected 3 distinct entries, got %d: %v", len(entries), entries)
	}
	for _, name := range []string{"cat_photo-no-bg.png", "cat_photo-no-bg-2.png", "cat_photo-no-bg-3.png"} {
		if _, ok := entries[name]; !ok {
			t.Errorf("Missing entry %s", name)
		}
	}
}

func TestWriteArchive_Empty(t *testing.T) {
	e := newTestExporter(t)
	var buf bytes.Buffer

	_, err := e.WriteArchive(&buf, []models.Item{{ID: "a", Status: models.StatusFailed}})
	if !errors.Is(err, ErrEmptyArchive) {
		t.Fatalf("Expected ErrEmptyArchive, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("No bytes should be written for an empty archive")
	}
}

func TestWriteArchive_SkipsCorruptPayload(t *testing.T) {
	e := newTestExporter(t)
	items := []models.Item{
		doneItem("a", "good.png", pngPayload),
		doneItem("b", "bad.png", []byte("not an image")),
	}

	var buf bytes.Buffer
	summary, err := e.WriteArchive(&buf, items)
	if err != nil {
		t.Fatalf("WriteArchive failed: %v", err)
	}
	if len(summary.Entries) != 1 || len(summary.Skipped) != 1 || summary.Skipped[0] != "b" {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	if entries := readArchive(t, buf.Bytes()); len(entries) != 1 {
		t.Errorf("Expected 1 entry, got %d", len(entries))
	}
}

func TestWriteArchive_AllCorrupt(t *testing.T) {
	e := newTestExporter(t)
	var buf bytes.Buffer

	_, err := e.WriteArchive(&buf, []models.Item{doneItem("a", "bad.png", []byte("garbage"))})
	if !errors.Is(err, ErrArchiveFailed) {
		t.Fatalf("Expected ErrArchiveFailed, got %v", err)
	}
}

func TestSpoolArchive(t *testing.T) {
	e := newTestExporter(t)
	dir := t.TempDir()

	spool, err := e.SpoolArchive(dir, []models.Item{doneItem("a", "one.png", pngPayload)})
	if err != nil {
		t.Fatalf("SpoolArchive failed: %v", err)
	}
	if spool.Name != "bgremover-2026-10-17.zip" {
		t.Errorf("Unexpected archive name %q", spool.Name)
	}

	data, err := io.ReadAll(spool.File)
	if err != nil {
		t.Fatalf("Failed to read spool: %v", err)
	}
	if int64(len(data)) != spool.Size {
		t.Errorf("Size %d does not match spooled bytes %d", spool.Size, len(data))
	}
	if entries := readArchive(t, data); len(entries) != 1 {
		t.Errorf("Expected 1 entry, got %d", len(entries))
	}

	path := spool.File.Name()
	if err := spool.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Spool file should be removed after Close")
	}
}

func TestSpoolArchive_EmptyLeavesNoFile(t *testing.T) {
	e := newTestExporter(t)
	dir := t.TempDir()

	if _, err := e.SpoolArchive(dir, nil); !errors.Is(err, ErrEmptyArchive) {
		t.Fatalf("Expected ErrEmptyArchive, got %v", err)
	}
	left, _ := os.ReadDir(dir)
	if len(left) != 0 {
		t.Errorf("Expected spool dir to be empty, found %d files", len(left))
	}
}
