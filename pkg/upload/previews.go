package upload

import (
	"bytes"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultPreviewPrefix is the URL prefix used by MemoryPreviews.
const DefaultPreviewPrefix = "/previews/"

// MemoryPreviews keeps staged file bytes in memory and serves them under
// prefix+handle until released. It is the server-side equivalent of a
// browser object URL.
type MemoryPreviews struct {
	prefix string

	mu    sync.RWMutex
	files map[string]File
}

// NewMemoryPreviews builds a preview store. An empty prefix selects
// DefaultPreviewPrefix.
func NewMemoryPreviews(prefix string) *MemoryPreviews {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPreviewPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &MemoryPreviews{
		prefix: prefix,
		files:  make(map[string]File),
	}
}

// Allocate stores file and returns its preview URL.
func (p *MemoryPreviews) Allocate(file File) (string, error) {
	handle := uuid.NewString()
	p.mu.Lock()
	p.files[handle] = file
	p.mu.Unlock()
	return p.prefix + handle, nil
}

// Release drops the preview behind url. Unknown URLs are ignored.
func (p *MemoryPreviews) Release(url string) {
	handle := strings.TrimPrefix(url, p.prefix)
	p.mu.Lock()
	delete(p.files, handle)
	p.mu.Unlock()
}

// Lookup returns the file behind a handle or full preview URL.
func (p *MemoryPreviews) Lookup(handle string) (File, error) {
	handle = path.Base(strings.TrimPrefix(handle, p.prefix))
	p.mu.RLock()
	defer p.mu.RUnlock()
	file, ok := p.files[handle]
	if !ok {
		return File{}, ErrPreviewNotFound
	}
	return file, nil
}

// Live returns the number of unreleased previews.
func (p *MemoryPreviews) Live() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.files)
}

// ServeHTTP serves preview bytes for requests under the configured prefix.
func (p *MemoryPreviews) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	file, err := p.Lookup(r.URL.Path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, file.Name, time.Time{}, bytes.NewReader(file.Content))
}
