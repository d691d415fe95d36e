// Package auth supplies the bearer token used for remote calls.
//
// A TokenSource either has a token or it doesn't; how the token was
// obtained (an OAuth flow, a secret manager, a file dropped by another
// tool) is outside this module.
package auth

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// TokenSource returns the current access token, if any.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// Static is a fixed token. The empty Static has no token.
type Static string

// Token implements TokenSource.
func (s Static) Token(context.Context) (string, bool) {
	tok := strings.TrimSpace(string(s))
	return tok, tok != ""
}

// FileSource reads the token from a file, caching it until the file
// changes. Run Watch to pick up changes; without it the file is read once.
type FileSource struct {
	path   string
	logger *log.Logger

	mu     sync.Mutex
	cached string
	loaded bool
}

// NewFileSource returns a FileSource for path.
func NewFileSource(path string, logger *log.Logger) *FileSource {
	if logger == nil {
		logger = log.New(os.Stderr, "[auth] ", log.LstdFlags)
	}
	return &FileSource{path: path, logger: logger}
}

// Path returns the token file path.
func (f *FileSource) Path() string {
	return f.path
}

// Token implements TokenSource. A missing or empty file means no token.
func (f *FileSource) Token(context.Context) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.loaded {
		f.cached = f.read()
		f.loaded = true
	}
	return f.cached, f.cached != ""
}

func (f *FileSource) read() string {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			f.logger.Printf("Warning: failed to read token file: %v", err)
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}

// invalidate drops the cached token so the next Token call re-reads.
func (f *FileSource) invalidate() {
	f.mu.Lock()
	f.loaded = false
	f.mu.Unlock()
}

// Watch invalidates the cache whenever the token file is written,
// replaced or removed. It blocks until ctx is done.
//
// The parent directory is watched rather than the file, so editors and
// tools that replace the file atomically are seen too.
func (f *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	name := filepath.Clean(f.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			f.logger.Printf("Token file changed: %s", event.Op)
			f.invalidate()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Printf("Watcher error: %v", err)
		}
	}
}

// Chain returns the first token any source has.
type Chain []TokenSource

// Token implements TokenSource.
func (c Chain) Token(ctx context.Context) (string, bool) {
	for _, src := range c {
		if src == nil {
			continue
		}
		if tok, ok := src.Token(ctx); ok {
			return tok, true
		}
	}
	return "", false
}
