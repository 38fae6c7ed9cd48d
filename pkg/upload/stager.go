// Package upload stages a user-selected file before it is persisted. A
// staged file carries a preview handle allocated from a Previews
// implementation; every allocation is paired with exactly one release, on
// replacement, Clear or Close.
package upload

import (
	"fmt"
	"mime"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	// DefaultMaxBytes is the largest accepted file (2 MiB).
	DefaultMaxBytes int64 = 2 * 1024 * 1024
)

// DefaultTypes lists the accepted MIME types.
var DefaultTypes = []string{"image/jpeg", "image/png"}

// File is a selected file handle.
type File struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Content  []byte `json:"-"`
}

// Size returns the content length in bytes.
func (f File) Size() int64 {
	return int64(len(f.Content))
}

// PendingUpload is a file accepted for staging but not yet persisted.
type PendingUpload struct {
	File       File   `json:"file"`
	PreviewURL string `json:"previewUrl"`
	SizeBytes  int64  `json:"sizeBytes"`
	FileName   string `json:"fileName"`
}

// Previews allocates and releases ephemeral preview references.
type Previews interface {
	Allocate(file File) (string, error)
	Release(url string)
}

// Option configures a Stager.
type Option func(*Stager)

// WithMaxBytes overrides the size limit.
func WithMaxBytes(n int64) Option {
	return func(s *Stager) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithTypes overrides the accepted MIME types.
func WithTypes(types ...string) Option {
	return func(s *Stager) {
		if len(types) == 0 {
			return
		}
		s.types = make(map[string]struct{}, len(types))
		for _, t := range types {
			s.types[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
		}
	}
}

// WithLogger sets the stager logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Stager) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Stager holds at most one pending upload.
type Stager struct {
	previews Previews
	maxBytes int64
	types    map[string]struct{}
	logger   *zap.Logger

	mu      sync.Mutex
	pending *PendingUpload
	closed  bool
}

// NewStager builds a stager that allocates previews from previews.
func NewStager(previews Previews, opts ...Option) *Stager {
	s := &Stager{
		previews: previews,
		maxBytes: DefaultMaxBytes,
		logger:   zap.NewNop(),
	}
	WithTypes(DefaultTypes...)(s)
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.previews == nil {
		s.previews = NewMemoryPreviews("")
	}
	return s
}

// Select validates file and, when accepted, stages it in place of any
// previous upload, releasing the previous preview once the new one is
// allocated. Rejected files return *RejectedError and, like a failed
// allocation, leave the current upload untouched.
func (s *Stager) Select(file File) (PendingUpload, error) {
	if err := s.check(&file); err != nil {
		s.logger.Debug("upload rejected", zap.String("file", file.Name), zap.Error(err))
		return PendingUpload{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return PendingUpload{}, ErrClosed
	}

	url, err := s.previews.Allocate(file)
	if err != nil {
		return PendingUpload{}, fmt.Errorf("upload: allocate preview: %w", err)
	}
	s.releaseLocked()
	s.pending = &PendingUpload{
		File:       file,
		PreviewURL: url,
		SizeBytes:  file.Size(),
		FileName:   file.Name,
	}
	return *s.pending, nil
}

// Replace stages file in place of the current upload. It has the same
// semantics as Select.
func (s *Stager) Replace(file File) (PendingUpload, error) {
	return s.Select(file)
}

// MaxBytes returns the size limit applied to selections.
func (s *Stager) MaxBytes() int64 { return s.maxBytes }

// Pending returns the staged upload, if any.
func (s *Stager) Pending() (PendingUpload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return PendingUpload{}, false
	}
	return *s.pending, true
}

// Clear releases the staged upload's preview and empties the stager.
func (s *Stager) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

// Close releases any staged preview. The stager rejects selections
// afterwards. Close is idempotent.
func (s *Stager) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
	s.closed = true
	return nil
}

func (s *Stager) releaseLocked() {
	if s.pending == nil {
		return
	}
	s.previews.Release(s.pending.PreviewURL)
	s.pending = nil
}

func (s *Stager) check(file *File) error {
	if file.Size() == 0 {
		return &RejectedError{Reason: ReasonEmpty, FileName: file.Name}
	}
	if file.Size() > s.maxBytes {
		return &RejectedError{
			Reason:   ReasonTooLarge,
			FileName: file.Name,
			Detail:   fmt.Sprintf("%d bytes exceeds %d", file.Size(), s.maxBytes),
		}
	}
	mediaType := NormalizeType(file.MimeType, file.Content)
	if _, ok := s.types[mediaType]; !ok {
		return &RejectedError{Reason: ReasonUnsupportedType, FileName: file.Name, Detail: mediaType}
	}
	file.MimeType = mediaType
	return nil
}

// NormalizeType strips parameters from a declared media type, falling back
// to content sniffing when nothing was declared.
func NormalizeType(declared string, content []byte) string {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		declared = http.DetectContentType(content)
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(declared)
	}
	return strings.ToLower(mediaType)
}
