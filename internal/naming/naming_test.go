package naming

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"test.png":          "png",
		"Photo.JPG":         "jpg",
		"archive.tar.gz":    "gz",
		"README":            DefaultExtension,
		"trailing.":         DefaultExtension,
		"weird.p n g":       DefaultExtension,
		"long.abcdefghijkl": DefaultExtension,
		"":                  DefaultExtension,
		"../../etc/passwd":  DefaultExtension,
	}
	for in, want := range cases {
		if got := Extension(in); got != want {
			t.Errorf("Extension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerateShape(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	name := Generate(now, "test.png")
	re := regexp.MustCompile(`^1700000000123-[0-9a-f]{8}\.png$`)
	if !re.MatchString(name) {
		t.Fatalf("name = %q does not match %s", name, re)
	}
	if !Valid(name) {
		t.Errorf("generated name %q is not Valid", name)
	}
	ts, ok := Timestamp(name)
	if !ok || !ts.Equal(now) {
		t.Errorf("Timestamp = %v, %v; want %v", ts, ok, now)
	}
}

func TestGenerateUniqueWithinMillisecond(t *testing.T) {
	now := time.Now()
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		n := Generate(now, "a.txt")
		if _, dup := seen[n]; dup {
			t.Fatalf("duplicate name %q after %d iterations", n, i)
		}
		seen[n] = struct{}{}
	}
}

func TestValid(t *testing.T) {
	good := []string{"1700000000000-deadbeef.png", "doesnotexist.png", "a"}
	bad := []string{"", "..", "../x", "a/b", `a\b`, ".hidden", "x..y", "nul\x00", strings.Repeat("a", 300)}
	for _, n := range good {
		if !Valid(n) {
			t.Errorf("Valid(%q) = false", n)
		}
	}
	for _, n := range bad {
		if Valid(n) {
			t.Errorf("Valid(%q) = true", n)
		}
	}
}

func TestTimestampRejectsForeignNames(t *testing.T) {
	for _, n := range []string{"photo.png", "123-xyz.png", "123-deadbeef"} {
		if _, ok := Timestamp(n); ok {
			t.Errorf("Timestamp(%q) should fail", n)
		}
	}
}
