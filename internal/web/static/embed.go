// Package static embeds the kiosk pages.
package static

import (
	"embed"
	"io/fs"
	"mime"
	"net/http"
	"path"
)

//go:embed dist/*
var distFS embed.FS

// Files served by the kiosk.
const (
	Dashboard = "index.html"
	Register  = "register.html"
	Script    = "kiosk.js"
	Style     = "kiosk.css"
)

// Serve writes one embedded file with a content type taken from its extension.
func Serve(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(distFS, "dist/"+name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		ct := mime.TypeByExtension(path.Ext(name))
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(data)
	}
}
