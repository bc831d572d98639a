package store

import "errors"

var (
	ErrNotFound          = errors.New("item not found")
	ErrDuplicate         = errors.New("item already exists")
	ErrAlreadyProcessing = errors.New("another item is already processing")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmptyResult       = errors.New("empty result payload")
)
