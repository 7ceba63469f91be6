// Package artifact serves a fixed set of build outputs over HTTP. It is the
// static counterpart of the dev server: no filesystem access, no caching
// headers, just a read-only map from request path to bytes.
package artifact

import (
	"errors"
	"fmt"
	"mime"
	"path"
	"sort"
	"strings"
)

// IndexFile is served for "" and "/".
const IndexFile = "index.html"

// ErrDuplicatePath is returned by NewMap when two inputs normalize to the
// same served path.
var ErrDuplicatePath = errors.New("duplicate artifact path")

// Entry is one servable file.
type Entry struct {
	Content []byte
	Textual bool
}

// Map is served path -> entry. Keys carry no leading separator. A Map is
// never written after NewMap returns, so it is safe to share between
// request goroutines.
type Map map[string]Entry

// NewMap normalizes file names and classifies each file as textual or not.
func NewMap(files map[string][]byte) (Map, error) {
	m := make(Map, len(files))
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		key := NormalizePath(name)
		if _, dup := m[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePath, key)
		}
		_, textual := ContentType(key)
		m[key] = Entry{Content: files[name], Textual: textual}
	}
	return m, nil
}

// Paths returns the served paths in lexical order.
func (m Map) Paths() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NormalizePath strips leading separators; the empty path becomes IndexFile.
func NormalizePath(p string) string {
	p = strings.TrimLeft(strings.ReplaceAll(p, "\\", "/"), "/")
	if p == "" {
		return IndexFile
	}
	return p
}

// webTypes pins the types the harness depends on; the platform mime table
// differs between systems for some of these.
var webTypes = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".mjs":  "text/javascript",
	".txt":  "text/plain",
	".json": "application/json",
	".map":  "application/json",
	".wasm": "application/wasm",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".ico":  "image/x-icon",
}

// ContentType returns the media type for name's extension, without
// parameters, and whether it is a text/* type that gets a charset.
func ContentType(name string) (mediaType string, textual bool) {
	ext := strings.ToLower(path.Ext(name))
	mediaType, ok := webTypes[ext]
	if !ok {
		mediaType = "application/octet-stream"
		if t := mime.TypeByExtension(ext); t != "" {
			if mt, _, err := mime.ParseMediaType(t); err == nil {
				mediaType = mt
			}
		}
	}
	return mediaType, strings.HasPrefix(mediaType, "text/")
}
