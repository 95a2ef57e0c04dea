package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/depot/internal/media"
	"github.com/starford/depot/internal/testutil"
)

// pngHeader is the PNG signature followed by an IHDR chunk start.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func testServer(t *testing.T) (*Server, *media.Service) {
	t.Helper()
	_, store := testutil.TestStore(t)
	db := testutil.TestDB(t)
	svc := media.NewService(store, db, testutil.TestCategories(t),
		media.WithLogger(testutil.Logger()),
		media.WithMaxBytes(1<<20))
	return New(svc, "test"), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "upload_file":
		result, err = srv.uploadFile(ctx, req)
	case "list_files":
		result, err = srv.listFiles(ctx, req)
	case "search_files":
		result, err = srv.searchFiles(ctx, req)
	case "list_categories":
		result, err = srv.listCategories(ctx, req)
	case "file_info":
		result, err = srv.fileInfo(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func dataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func TestUploadFileDataURI(t *testing.T) {
	srv, svc := testServer(t)

	r := callTool(t, srv, "upload_file", map[string]interface{}{
		"category": "sekiller",
		"url":      dataURI("image/png", pngHeader),
		"filename": "logo.PNG",
	})
	if r.IsError {
		t.Fatalf("upload error: %s", resultText(r))
	}
	var res uploadResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.URL, "/api/files/sekiller/") || !strings.HasSuffix(res.URL, ".png") {
		t.Errorf("url = %q", res.URL)
	}
	if res.ContentType != "image/png" || res.OriginalName != "logo.PNG" {
		t.Errorf("res = %+v", res)
	}

	blob, err := svc.Open(context.Background(), "sekiller", res.Name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(blob.Data) != string(pngHeader) {
		t.Error("stored content mismatch")
	}
}

func TestUploadFileDataURIWithoutFilename(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "upload_file", map[string]interface{}{
		"category": "duyurular",
		"url":      dataURI("application/pdf", []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")),
	})
	if r.IsError {
		t.Fatalf("upload error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), ".pdf") {
		t.Errorf("result = %s", resultText(r))
	}
}

func TestUploadFileRejections(t *testing.T) {
	srv, svc := testServer(t)
	cases := []struct {
		name string
		args map[string]interface{}
	}{
		{"unknown category", map[string]interface{}{"category": "not-a-real-dir", "url": dataURI("image/png", pngHeader)}},
		{"missing category", map[string]interface{}{"url": dataURI("image/png", pngHeader)}},
		{"missing url", map[string]interface{}{"category": "sekiller"}},
		{"magic mismatch", map[string]interface{}{"category": "sekiller", "url": dataURI("image/png", []byte("not a png")), "filename": "x.png"}},
		{"not base64", map[string]interface{}{"category": "sekiller", "url": "data:image/png,raw"}},
		{"bad scheme", map[string]interface{}{"category": "sekiller", "url": "file:///etc/passwd"}},
		{"empty payload", map[string]interface{}{"category": "sekiller", "url": "data:text/plain;base64,", "filename": "a.bin"}},
	}
	for _, c := range cases {
		r := callTool(t, srv, "upload_file", c.args)
		if !r.IsError {
			t.Errorf("%s: expected error, got %s", c.name, resultText(r))
		}
	}
	if _, total, _ := svc.List(context.Background(), "", 10, 0); total != 0 {
		t.Errorf("rejected uploads stored %d files", total)
	}
}

func TestUploadFileBlocksLoopbackFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	}))
	defer ts.Close()

	srv, _ := testServer(t)
	r := callTool(t, srv, "upload_file", map[string]interface{}{
		"category": "sekiller",
		"url":      ts.URL + "/logo.png",
	})
	if !r.IsError || !strings.Contains(resultText(r), "blocked host") {
		t.Errorf("result = %s", resultText(r))
	}
}

func TestCheckBlockedHost(t *testing.T) {
	blocked := []string{"127.0.0.1", "::1", "10.0.0.8", "192.168.1.1", "169.254.169.254", "0.0.0.0", "metadata.google.internal", ""}
	for _, h := range blocked {
		if err := checkBlockedHost(h); err == nil {
			t.Errorf("checkBlockedHost(%q) = nil, want error", h)
		}
	}
	for _, h := range []string{"93.184.216.34", "2606:4700::1111"} {
		if err := checkBlockedHost(h); err != nil {
			t.Errorf("checkBlockedHost(%q) = %v", h, err)
		}
	}
}

func TestDecodeDataURI(t *testing.T) {
	data, ext, err := decodeDataURI(dataURI("image/jpeg", []byte("jpg")))
	if err != nil || string(data) != "jpg" || ext != ".jpg" {
		t.Errorf("decode = %q %q %v", data, ext, err)
	}
	if _, ext, _ := decodeDataURI(dataURI("application/x-unknown", []byte("x"))); ext != "" {
		t.Errorf("unknown ext = %q", ext)
	}
	if _, _, err := decodeDataURI("data:image/png;base64"); err == nil {
		t.Error("expected error for missing comma")
	}
}

func TestFilenameFromURL(t *testing.T) {
	if got := filenameFromURL("https://example.com/a/report.pdf?x=1", ""); got != "report.pdf" {
		t.Errorf("got %q", got)
	}
	if got := filenameFromURL("https://example.com/download", ".png"); !strings.HasSuffix(got, ".png") {
		t.Errorf("got %q", got)
	}
	if got := filenameFromURL("data:foo;base64,", ""); !strings.HasSuffix(got, ".bin") {
		t.Errorf("got %q", got)
	}
}

func TestListFilesAndInfo(t *testing.T) {
	srv, svc := testServer(t)
	ctx := context.Background()
	rec, err := svc.Upload(ctx, "haberler", "duyuru.txt", []byte("merhaba"))
	if err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "list_files", map[string]interface{}{"category": "haberler"})
	if r.IsError || !strings.Contains(resultText(r), rec.Name) {
		t.Errorf("list = %s", resultText(r))
	}

	r = callTool(t, srv, "list_files", map[string]interface{}{"category": "nope"})
	if !r.IsError {
		t.Error("expected error for unknown category")
	}

	r = callTool(t, srv, "file_info", map[string]interface{}{"category": "haberler", "name": rec.Name})
	if r.IsError || !strings.Contains(resultText(r), `"original_name": "duyuru.txt"`) {
		t.Errorf("info = %s", resultText(r))
	}

	r = callTool(t, srv, "file_info", map[string]interface{}{"category": "haberler", "name": "nope.txt"})
	if !r.IsError {
		t.Error("expected error for missing file")
	}

	r = callTool(t, srv, "search_files", map[string]interface{}{"query": "duyuru"})
	if r.IsError || !strings.Contains(resultText(r), rec.Name) {
		t.Errorf("search = %s", resultText(r))
	}
	r = callTool(t, srv, "search_files", map[string]interface{}{"query": "zzz"})
	if resultText(r) != "no files found" {
		t.Errorf("empty search = %s", resultText(r))
	}
}

func TestListCategoriesAndResources(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_categories", map[string]interface{}{})
	for _, c := range testutil.DefaultCategories {
		if !strings.Contains(resultText(r), `"`+c+`"`) {
			t.Errorf("categories missing %q", c)
		}
	}

	contents, err := srv.readCategoriesResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	if err := json.Unmarshal([]byte(contents[0].(mcp.TextResourceContents).Text), &names); err != nil {
		t.Fatal(err)
	}
	if len(names) != len(testutil.DefaultCategories) {
		t.Errorf("names = %v", names)
	}

	guide, err := srv.readUploadGuideResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(guide[0].(mcp.TextResourceContents).Text, "- `sekiller`") {
		t.Error("guide does not list categories")
	}
}
