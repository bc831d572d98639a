package export

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

const (
	ResultSuffix    = "-no-bg"
	ResultExtension = ".png"
	archivePrefix   = "bgremover-"
	fallbackBase    = "image"
)

var (
	extPattern        = regexp.MustCompile(`\.[^.]+$`)
	disallowedPattern = regexp.MustCompile(`[^\w\s\v\p{Z}\x{FEFF}-]`)
	spacePattern      = regexp.MustCompile(`[\s\v\p{Z}\x{FEFF}]+`)
)

// Sanitize keeps ASCII letters, digits, underscores, hyphens and whitespace (Unicode
// separators and BOM included), then turns each whitespace run into a single underscore.
// Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(base string) string {
	s := disallowedPattern.ReplaceAllString(base, "")
	return spacePattern.ReplaceAllString(s, "_")
}

// FileName derives the download name of a processed image from its original file name.
func FileName(displayName string) string {
	base := extPattern.ReplaceAllString(path.Base(strings.ReplaceAll(displayName, `\`, "/")), "")
	safe := Sanitize(base)
	if safe == "" || safe == "_" {
		safe = fallbackBase
	}
	return safe + ResultSuffix + ResultExtension
}

// ArchiveName returns the archive file name for the given day (UTC).
func ArchiveName(t time.Time) string {
	return archivePrefix + t.UTC().Format("2006-01-02") + ".zip"
}

// uniqueNames hands out entry names, numbering repeats: a.png, a-2.png, a-3.png.
type uniqueNames map[string]struct{}

func (u uniqueNames) take(name string) string {
	candidate := name
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		if _, used := u[candidate]; !used {
			u[candidate] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}
}
