// Package contenttype infers media types for stored files: by extension when
// serving, by content when indexing.
package contenttype

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Fallback is returned when no type can be inferred.
const Fallback = "application/octet-stream"

// portal types resolved without consulting the host's mime tables, so
// responses do not depend on what /etc/mime.types happens to contain.
var byExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".pdf":  "application/pdf",
	".txt":  "text/plain; charset=utf-8",
	".csv":  "text/csv; charset=utf-8",
	".json": "application/json",
	".zip":  "application/zip",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".webm": "video/webm",
}

// ByExtension infers a content type from name's extension.
func ByExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return Fallback
	}
	if ct, ok := byExt[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return Fallback
}

// Detect sniffs data and returns its media type.
func Detect(data []byte) string {
	if len(data) == 0 {
		return Fallback
	}
	return mimetype.Detect(data).String()
}

// Matches reports whether the content of data is consistent with the type
// implied by ext (for example ".png"). Unknown extensions never match.
func Matches(data []byte, ext string) bool {
	want, ok := byExt[strings.ToLower(ext)]
	if !ok {
		return false
	}
	want, _, _ = strings.Cut(want, ";")
	return mimetype.Detect(data).Is(want)
}
