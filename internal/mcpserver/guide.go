package mcpserver

import (
	"strings"

	"github.com/starford/depot/internal/category"
)

// uploadGuideHeader is the static part of the guide served at depot://upload-guide.
const uploadGuideHeader = `# Depot Upload Guide

Files uploaded to depot are stored under one category and served publicly at
` + "`/api/files/<category>/<name>`" + `.

## Rules

1. **The category must be one of the allowed categories** listed below. Any
   other value is rejected and nothing is written.
2. **Stored names are generated.** The original filename only contributes its
   extension, lower-cased. Files without a usable extension are stored as ` + "`.bin`" + `.
3. **Files are never overwritten or deleted.** Every upload yields a new URL.
4. **Content must match the extension** for uploads made through the
   ` + "`upload_file`" + ` tool: a ` + "`.png`" + ` must really be a PNG.
5. **Sources** are base64 data URIs (` + "`data:image/png;base64,...`" + `) or public
   http(s) URLs. Loopback, private and cloud metadata hosts are refused.

## Allowed categories

`

// UploadGuide renders the guide for the given allow-list.
func UploadGuide(cats *category.Set) string {
	var b strings.Builder
	b.WriteString(uploadGuideHeader)
	for _, n := range cats.Names() {
		b.WriteString("- `")
		b.WriteString(n)
		b.WriteString("`\n")
	}
	return b.String()
}
