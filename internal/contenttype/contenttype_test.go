package contenttype

import (
	"strings"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestByExtension(t *testing.T) {
	cases := map[string]string{
		"x.png":       "image/png",
		"X.PNG":       "image/png",
		"a.jpeg":      "image/jpeg",
		"doc.pdf":     "application/pdf",
		"sheet.xlsx":  "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"noext":       Fallback,
		"odd.qqqzzz1": Fallback,
	}
	for in, want := range cases {
		if got := ByExtension(in); got != want {
			t.Errorf("ByExtension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDetect(t *testing.T) {
	if got := Detect(pngHeader); got != "image/png" {
		t.Errorf("Detect(png) = %q", got)
	}
	if got := Detect([]byte("hello world")); !strings.HasPrefix(got, "text/plain") {
		t.Errorf("Detect(text) = %q", got)
	}
	if got := Detect(nil); got != Fallback {
		t.Errorf("Detect(nil) = %q", got)
	}
}

func TestMatches(t *testing.T) {
	if !Matches(pngHeader, ".png") {
		t.Error("png header should match .png")
	}
	if Matches([]byte("abc"), ".png") {
		t.Error("text should not match .png")
	}
	if Matches(pngHeader, ".exe") {
		t.Error("unknown extension should never match")
	}
}
