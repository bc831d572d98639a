package validation

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

type FileType string

const (
	FileTypePNG  FileType = "png"
	FileTypeJPEG FileType = "jpeg"
)

var magicBytes = map[FileType][]byte{
	FileTypePNG:  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	FileTypeJPEG: {0xFF, 0xD8, 0xFF},
}

var contentTypes = map[FileType]string{
	FileTypePNG:  "image/png",
	FileTypeJPEG: "image/jpeg",
}

func (f FileType) ContentType() string {
	return contentTypes[f]
}

// DetectFileType sniffs the payload signature against the allow-list.
func DetectFileType(data []byte) (FileType, error) {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	for fileType, signature := range magicBytes {
		if bytes.HasPrefix(head, signature) {
			return fileType, nil
		}
	}
	return "", ErrInvalidFileType
}

// ValidateImage checks size, signature and that the image header decodes.
func ValidateImage(data []byte, maxSize int64) (FileType, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return "", ErrFileTooLarge
	}

	fileType, err := DetectFileType(data)
	if err != nil {
		return "", err
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return fileType, nil
}
