package mcpserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/depot/internal/apperr"
	"github.com/starford/depot/internal/contenttype"
	"github.com/starford/depot/internal/naming"
)

// defaultMaxFetch bounds downloads when the service has no payload cap.
const defaultMaxFetch = 20 << 20

var mimeToExt = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
}

type uploadResult struct {
	URL          string `json:"url"`
	Category     string `json:"category"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	ContentType  string `json:"content_type"`
}

func (s *Server) maxFetch() int64 {
	if n := s.svc.MaxBytes(); n > 0 {
		return n
	}
	return defaultMaxFetch
}

func (s *Server) uploadFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cat, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	filename := req.GetString("filename", "")

	// Reject before fetching anything.
	if err := validation.Validate(cat, validation.Required, s.svc.Categories().Rule()); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("unknown category: %s (allowed: %s)",
			cat, strings.Join(s.svc.Categories().Names(), ", "))), nil
	}

	var data []byte
	var detectedExt string
	if strings.HasPrefix(rawURL, "data:") {
		data, detectedExt, err = decodeDataURI(rawURL)
	} else {
		data, detectedExt, err = fetchHTTP(ctx, rawURL, s.maxFetch())
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if filename == "" {
		filename = filenameFromURL(rawURL, detectedExt)
	}
	ext := "." + naming.Extension(filename)
	if ext != "."+naming.DefaultExtension && !contenttype.Matches(data, ext) {
		return mcp.NewToolResultError(fmt.Sprintf("content does not match extension %s (detected: %s)",
			ext, contenttype.Detect(data))), nil
	}

	rec, err := s.svc.Upload(ctx, cat, filename, data)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrEmptyPayload):
			return mcp.NewToolResultError("file is empty"), nil
		case errors.Is(err, apperr.ErrInvalidCategory):
			return mcp.NewToolResultError(fmt.Sprintf("unknown category: %s", cat)), nil
		case errors.Is(err, apperr.ErrTooLarge):
			return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(data), s.maxFetch())), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to store file: %v", err)), nil
	}

	return jsonResult(uploadResult{
		URL:          rec.URL,
		Category:     rec.Category,
		Name:         rec.Name,
		OriginalName: rec.OriginalName,
		Size:         rec.Size,
		ContentType:  rec.ContentType,
	}), nil
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}

	mediaType, _, _ := strings.Cut(strings.TrimSuffix(meta, ";base64"), ";")
	return data, mimeToExt[strings.ToLower(mediaType)], nil
}

// fetchHTTP downloads a file from an HTTP/HTTPS URL with security checks.
func fetchHTTP(ctx context.Context, rawURL string, limit int64) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}
	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("file too large: exceeds %d bytes", limit)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return data, mimeToExt[mediaType], nil
}

// checkBlockedHost rejects loopback, private, link-local and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "" {
		return fmt.Errorf("missing host")
	}
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ips := []net.IP{net.ParseIP(host)}
	if ips[0] == nil {
		resolved, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(resolved) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ips = resolved
	}

	for _, ip := range ips {
		switch {
		case ip.IsLoopback():
			return fmt.Errorf("blocked host: loopback address %s", host)
		case ip.IsPrivate():
			return fmt.Errorf("blocked host: private address %s", host)
		case ip.IsUnspecified():
			return fmt.Errorf("blocked host: unspecified address %s", host)
		case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
			// Covers the 169.254.169.254 metadata endpoint.
			return fmt.Errorf("blocked host: link-local address %s", host)
		}
	}
	return nil
}

// filenameFromURL extracts a filename from a URL path, falling back to a
// UUID with the detected extension.
func filenameFromURL(rawURL string, fallbackExt string) string {
	if !strings.HasPrefix(rawURL, "data:") {
		if parsed, err := url.Parse(rawURL); err == nil {
			base := path.Base(parsed.Path)
			if base != "" && base != "." && base != "/" && strings.Contains(base, ".") {
				return base
			}
		}
	}
	ext := fallbackExt
	if ext == "" {
		ext = "." + naming.DefaultExtension
	}
	return uuid.New().String() + ext
}
