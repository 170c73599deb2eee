// Package resource maps URL paths requested by the UI runtime onto bundled assets.
//
// The Resolver is a virtual, read-only file server: it normalizes the requested path,
// looks it up under a fixed asset root and returns the full file contents with a MIME
// type derived from the extension. Resolution is synchronous and never cached here.
package resource

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// DefaultRootDocument is served for the empty path.
const DefaultRootDocument = "index.html"

// ErrNotFound signals that no regular file exists for the requested path.
var ErrNotFound = errors.New("resource not found")

// Resource is one resolved asset.
type Resource struct {
	Data     []byte
	MIMEType string
}

// Resolver resolves paths against an asset root.
type Resolver struct {
	root    fs.FS
	rootDoc string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRootDocument overrides the document served for "" and "/".
func WithRootDocument(name string) Option {
	return func(r *Resolver) {
		if name != "" {
			r.rootDoc = name
		}
	}
}

// NewResolver creates a Resolver over root, typically an os.Root FS or an embed.FS sub-tree.
func NewResolver(root fs.FS, opts ...Option) *Resolver {
	r := &Resolver{root: root, rootDoc: DefaultRootDocument}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the asset at p. Paths escaping the root are reported as ErrNotFound.
func (r *Resolver) Resolve(p string) (Resource, error) {
	name, ok := r.normalize(p)
	if !ok {
		return Resource{}, fmt.Errorf("%w: %q", ErrNotFound, p)
	}

	info, err := fs.Stat(r.root, name)
	if err != nil || !info.Mode().IsRegular() {
		return Resource{}, fmt.Errorf("%w: %q", ErrNotFound, p)
	}
	data, err := fs.ReadFile(r.root, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Resource{}, fmt.Errorf("%w: %q", ErrNotFound, p)
		}
		return Resource{}, fmt.Errorf("read %q: %w", name, err)
	}
	return Resource{Data: data, MIMEType: MIMEType(name)}, nil
}

// normalize strips one leading "/" and maps the empty path to the root document.
// Any path that is not a clean, root-relative fs path is rejected.
func (r *Resolver) normalize(p string) (string, bool) {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		p = r.rootDoc
	}
	if strings.ContainsRune(p, '\\') || strings.ContainsRune(p, 0) {
		return "", false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", false
		}
	}
	p = path.Clean(p)
	if !fs.ValidPath(p) || p == "." {
		return "", false
	}
	return p, true
}

var mimeTypes = map[string]string{
	".html":  "text/html",
	".css":   "text/css",
	".js":    "application/javascript",
	".json":  "application/json",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".svg":   "image/svg+xml",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

// OctetStream is the MIME type of unrecognized extensions.
const OctetStream = "application/octet-stream"

// MIMEType classifies name by its extension, case-insensitively.
func MIMEType(name string) string {
	if t, ok := mimeTypes[strings.ToLower(path.Ext(name))]; ok {
		return t
	}
	return OctetStream
}
