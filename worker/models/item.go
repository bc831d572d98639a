package models

import (
	"time"
)

type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusProcessing ItemStatus = "processing"
	StatusDone       ItemStatus = "done"
	StatusFailed     ItemStatus = "failed"
)

// Item is one ingested image together with its processing state and derived artifacts.
// ResultHandle is a revocable view over ResultBytes and is only set while Status is done.
type Item struct {
	ID           string
	DisplayName  string
	SourceBytes  []byte
	SourceType   string
	ResultHandle string
	ResultBytes  []byte
	Status       ItemStatus
	Progress     int
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasResult reports whether the item carries exportable output.
func (i *Item) HasResult() bool {
	return len(i.ResultBytes) > 0
}

// Clone returns a copy that shares the immutable byte slices but not the struct.
func (i *Item) Clone() Item {
	return *i
}
