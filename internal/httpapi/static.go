package httpapi

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"mime"
	"path"
	"strings"
)

//go:embed static/*
var embeddedStatic embed.FS

// Manifest is the fixed set of pages and assets the cache worker precaches.
// The root path serves index.html.
func Manifest() []string {
	return []string{"/", "/app.js", "/styles.css", "/manifest.webmanifest"}
}

// fsFetcher resolves manifest paths against the embedded UI files. It is
// the authoritative source the cache worker fetches from.
type fsFetcher struct {
	files fs.FS
}

func newFSFetcher() (*fsFetcher, error) {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		return nil, err
	}
	return &fsFetcher{files: sub}, nil
}

func (f *fsFetcher) Fetch(_ context.Context, p string) ([]byte, string, error) {
	name := strings.TrimPrefix(p, "/")
	if name == "" {
		name = "index.html"
	}
	data, err := fs.ReadFile(f.files, name)
	if err != nil {
		return nil, "", fmt.Errorf("read asset %s: %w", name, err)
	}
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

var deniedPage = template.Must(template.ParseFS(embeddedStatic, "static/denied.html"))
