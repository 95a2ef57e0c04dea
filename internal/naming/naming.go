// Package naming derives collision-resistant names for stored files.
//
// A generated name has the form <unix-millis>-<8 hex>.<ext>. The hex suffix
// carries 32 random bits, so two uploads landing in the same millisecond
// do not collide in practice.
package naming

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultExtension is used when the original filename has no usable extension.
const DefaultExtension = "bin"

const maxNameLen = 255

var (
	extPattern       = regexp.MustCompile(`^[a-z0-9]{1,10}$`)
	generatedPattern = regexp.MustCompile(`^([0-9]{1,19})-([0-9a-f]{8})\.([a-z0-9]{1,10})$`)
)

// Extension returns the lower-cased extension of original without the dot,
// or DefaultExtension when it is absent or not a short alphanumeric token.
func Extension(original string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(original), "."))
	if !extPattern.MatchString(ext) {
		return DefaultExtension
	}
	return ext
}

// Generate returns a fresh name for a file uploaded at now.
func Generate(now time.Time, original string) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + randomSuffix() + "." + Extension(original)
}

func randomSuffix() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}

// Valid reports whether name is a plain file name that may be joined onto a
// category directory: no separators, no dot segments, not hidden.
func Valid(name string) bool {
	if name == "" || len(name) > maxNameLen {
		return false
	}
	if strings.ContainsAny(name, "/\\\x00") || strings.Contains(name, "..") {
		return false
	}
	return !strings.HasPrefix(name, ".")
}

// Timestamp extracts the upload time from a generated name.
func Timestamp(name string) (time.Time, bool) {
	m := generatedPattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
