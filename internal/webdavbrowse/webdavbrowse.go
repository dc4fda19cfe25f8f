// Package webdavbrowse is a thin PROPFIND directory-listing collaborator.
// It is out of the Range engine's core: it exists only so the router has
// somewhere to send PROPFIND requests on non-video paths, using the corpus's
// WebDAV client rather than hand-rolling PROPFIND/XML parsing.
package webdavbrowse

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/studio-b12/gowebdav"
)

// DirEntry is one listed item, shaped for the PROPFIND JSON response.
type DirEntry struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	IsDir        bool   `json:"isDir"`
	LastModified string `json:"lastModified"`
}

// Browser lists directories on the configured origin over WebDAV.
type Browser struct {
	client *gowebdav.Client
}

// New builds a Browser against baseURL, reusing the shared pooled transport
// and optional static credentials.
func New(baseURL, username, password string, transport http.RoundTripper) *Browser {
	client := gowebdav.NewClient(baseURL, username, password)
	client.SetTransport(transport)
	return &Browser{client: client}
}

// List returns the directory listing at path.
func (b *Browser) List(path string) ([]DirEntry, error) {
	infos, err := b.client.ReadDir(path)
	if err != nil {
		return nil, errors.Wrapf(err, "PROPFIND %s failed", path)
	}

	entries := make([]DirEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, DirEntry{
			Name:         info.Name(),
			Size:         info.Size(),
			IsDir:        info.IsDir(),
			LastModified: info.ModTime().UTC().Format(http.TimeFormat),
		})
	}
	return entries, nil
}
