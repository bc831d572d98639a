package export

import (
	"testing"
	"time"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"cat photo.png", "cat_photo-no-bg.png"},
		{"portrait.jpeg", "portrait-no-bg.png"},
		{"my.cat.photo.jpg", "mycatphoto-no-bg.png"},
		{"summer   beach\tday.png", "summer_beach_day-no-bg.png"},
		{"héllo wörld!.png", "hllo_wrld-no-bg.png"},
		{"keep-dash_and_under.png", "keep-dash_and_under-no-bg.png"},
		{"noext", "noext-no-bg.png"},
		{"cat\u00a0photo.png", "cat_photo-no-bg.png"},
		{"wide\u3000gap \u2009thin.png", "wide_gap_thin-no-bg.png"},
		{"!!!.png", "image-no-bg.png"},
		{"dir/sub/shot 1.png", "shot_1-no-bg.png"},
		{`C:\Users\me\shot 2.png`, "shot_2-no-bg.png"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := FileName(tt.input); got != tt.want {
				t.Errorf("FileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"cat photo",
		"  leading and trailing  ",
		"tabs\tand\nnewlines",
		"symbols #$%^&*() here",
		"ünïcödé name",
		"nbsp\u00a0and\u2003em space",
		"already_clean-name",
		"",
	}

	for _, in := range inputs {
		once := Sanitize(in)
		if twice := Sanitize(once); twice != once {
			t.Errorf("Sanitize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestArchiveName(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	ts := time.Date(2026, 3, 1, 5, 0, 0, 0, loc)

	if got := ArchiveName(ts); got != "bgremover-2026-02-28.zip" {
		t.Errorf("Expected UTC date in archive name, got %q", got)
	}
}

func TestUniqueNames(t *testing.T) {
	names := uniqueNames{}

	got := []string{
		names.take("cat_photo-no-bg.png"),
		names.take("cat_photo-no-bg.png"),
		names.take("dog-no-bg.png"),
		names.take("cat_photo-no-bg.png"),
		names.take("cat_photo-no-bg-2.png"),
	}
	want := []string{
		"cat_photo-no-bg.png",
		"cat_photo-no-bg-2.png",
		"dog-no-bg.png",
		"cat_photo-no-bg-3.png",
		"cat_photo-no-bg-2-2.png",
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("take #%d = %q, want %q", i, got[i], want[i])
		}
	}
}
