package validation

import "errors"

var (
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFileTooLarge    = errors.New("file size exceeds upload limit")
	ErrEmptyFile       = errors.New("file is empty")
	ErrUndecodable     = errors.New("file cannot be decoded as an image")
)
