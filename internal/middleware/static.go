package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

// StaticFileServer serves the web client build. Unknown paths fall back to
// index.html so client-side routes resolve.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(r.URL.Path))

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	})
}
