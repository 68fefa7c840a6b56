package mediatypes

import "testing"

func TestKindForExt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want Kind
	}{
		{".jpg", KindImage},
		{".jpeg", KindImage},
		{".png", KindImage},
		{".webp", KindImage},
		{".heic", KindImage},
		{".cr2", KindImage},
		{".mp4", KindVideo},
		{".mkv", KindVideo},
		{".webm", KindVideo},
		{".txt", KindOther},
		{".pdf", KindOther},
		{"", KindOther},
		{"jpg", KindOther}, // missing the leading dot
	}

	for _, tt := range tests {
		if got := KindForExt(tt.ext); got != tt.want {
			t.Errorf("KindForExt(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestMimeForExt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want string
	}{
		{".jpg", "image/jpeg"},
		{".jpeg", "image/jpeg"},
		{".png", "image/png"},
		{".mp4", "video/mp4"},
		{".mov", "video/quicktime"},
		{".xyz", "application/octet-stream"},
		{"", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := MimeForExt(tt.ext); got != tt.want {
			t.Errorf("MimeForExt(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestIsMedia(t *testing.T) {
	t.Parallel()

	if !IsMedia(".jpg") || !IsMedia(".mp4") {
		t.Error("Known media extensions should be recognized")
	}
	if IsMedia(".txt") || IsMedia("") {
		t.Error("Non-media extensions should be rejected")
	}
}
