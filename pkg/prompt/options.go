package prompt

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/upload"
)

// Theme captures optional message prefixes.
type Theme struct {
	InfoPrefix  string
	ErrorPrefix string
}

// FileOpener turns a user-supplied path into an upload file. Files larger
// than maxBytes should be refused with *upload.RejectedError without being
// read.
type FileOpener func(path string, maxBytes int64) (upload.File, error)

// OpenFile reads path from disk after checking its size against maxBytes.
// The MIME type is guessed from the extension; the stager sniffs the content
// when no type can be guessed.
func OpenFile(path string, maxBytes int64) (upload.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return upload.File{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return upload.File{}, err
	}
	name := filepath.Base(path)
	if maxBytes > 0 && info.Size() > maxBytes {
		return upload.File{}, tooLarge(name, info.Size(), maxBytes)
	}

	// The file may grow between Stat and read.
	reader := io.Reader(f)
	if maxBytes > 0 {
		reader = io.LimitReader(f, maxBytes+1)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return upload.File{}, err
	}
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return upload.File{}, tooLarge(name, int64(len(content)), maxBytes)
	}
	return upload.File{
		Name:     name,
		MimeType: mime.TypeByExtension(filepath.Ext(path)),
		Content:  content,
	}, nil
}

func tooLarge(name string, size, maxBytes int64) *upload.RejectedError {
	return &upload.RejectedError{
		Reason:   upload.ReasonTooLarge,
		FileName: name,
		Detail:   fmt.Sprintf("%d bytes exceeds %d", size, maxBytes),
	}
}

// Option configures a Runner.
type Option func(*Runner)

// WithDriver overrides the prompt driver.
func WithDriver(driver Driver) Option {
	return func(r *Runner) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// WithFileOpener overrides how file paths are read.
func WithFileOpener(fn FileOpener) Option {
	return func(r *Runner) {
		if fn != nil {
			r.open = fn
		}
	}
}

// WithLogger sets the runner logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTheme applies message prefixes.
func WithTheme(theme Theme) Option {
	return func(r *Runner) {
		r.theme = theme
	}
}
