// Package editor opens source locations in the developer's editor through a
// URI scheme handler such as vscode://.
package editor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/browser"
)

// DefaultScheme is the URI scheme used when none is configured.
const DefaultScheme = "vscode"

// ErrNoScheme is returned by URI when scheme is empty.
var ErrNoScheme = errors.New("editor: empty URI scheme")

// Opener opens an editor URI.
type Opener interface {
	Open(uri string) error
}

// URI builds <scheme>://file/<absolutePath>:<line>. Relative paths are made
// absolute against the working directory. Exactly one slash separates "file"
// from the path on every platform.
func URI(scheme, path string, line int) (string, error) {
	scheme = strings.TrimSuffix(strings.TrimSpace(scheme), "://")
	if scheme == "" {
		return "", ErrNoScheme
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	abs = strings.TrimLeft(filepath.ToSlash(abs), "/")
	if line < 1 {
		line = 1
	}
	return fmt.Sprintf("%s://file/%s:%d", scheme, abs, line), nil
}

// Browser opens URIs with the operating system's URL handler.
type Browser struct{}

// Open hands uri to xdg-open, open or start depending on the platform.
func (Browser) Open(uri string) error {
	if err := browser.OpenURL(uri); err != nil {
		return fmt.Errorf("open %s: %w", uri, err)
	}
	return nil
}

// Func adapts a function to Opener.
type Func func(uri string) error

// Open calls f(uri).
func (f Func) Open(uri string) error { return f(uri) }
