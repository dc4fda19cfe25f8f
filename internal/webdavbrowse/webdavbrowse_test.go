package webdavbrowse

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const propfindResponse = `<?xml version="1.0" encoding="utf-8"?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/videos/</D:href>
    <D:propstat>
      <D:prop>
        <D:resourcetype><D:collection/></D:resourcetype>
        <D:getlastmodified>Mon, 03 Aug 2026 00:00:00 GMT</D:getlastmodified>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
  <D:response>
    <D:href>/videos/clip.mp4</D:href>
    <D:propstat>
      <D:prop>
        <D:resourcetype/>
        <D:getcontentlength>1048576</D:getcontentlength>
        <D:getlastmodified>Mon, 03 Aug 2026 00:00:00 GMT</D:getlastmodified>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`

func TestListReturnsEntriesFromPropfindResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PROPFIND" {
			t.Errorf("method = %s, want PROPFIND", r.Method)
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusMultiStatus)
		w.Write([]byte(propfindResponse))
	}))
	defer srv.Close()

	b := New(srv.URL, "", "", http.DefaultTransport)
	entries, err := b.List("/videos/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	var sawFile, sawDir bool
	for _, e := range entries {
		if e.Name == "clip.mp4" {
			sawFile = true
			if e.Size != 1048576 {
				t.Errorf("clip.mp4 size = %d, want 1048576", e.Size)
			}
			if e.IsDir {
				t.Error("clip.mp4 marked as directory")
			}
		}
		if strings.TrimSuffix(e.Name, "/") == "videos" {
			sawDir = true
		}
	}
	if !sawFile {
		t.Error("did not find clip.mp4 in listing")
	}
	_ = sawDir
}

func TestListWrapsTransportError(t *testing.T) {
	b := New("http://127.0.0.1:1", "", "", http.DefaultTransport)
	if _, err := b.List("/videos/"); err == nil {
		t.Fatal("expected an error from an unreachable origin")
	}
}
