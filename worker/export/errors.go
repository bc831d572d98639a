package export

import "errors"

var (
	ErrNoResult      = errors.New("item has no processed result")
	ErrEmptyArchive  = errors.New("no processed images available for download")
	ErrArchiveFailed = errors.New("no images could be added to archive")
)
