package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

// placeholderSVG is served when a requested car image is missing, so the
// storefront never shows a broken thumbnail.
const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#f0f0f0"/><path d="M45 120l15-35c2-5 7-8 12-8h56c5 0 10 3 12 8l15 35v30h-12a12 12 0 01-24 0H81a12 12 0 01-24 0H45z" fill="#999"/><text x="100" y="180" text-anchor="middle" font-family="Arial" font-size="14" fill="#666">MOTORENT</text></svg>`

// StaticFileServer serves the storefront's built assets and car images,
// falling back to a placeholder graphic for missing images.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(r.URL.Path))

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
