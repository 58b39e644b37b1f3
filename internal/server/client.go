package server

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// handleClient serves the browser client from dir. Unknown paths get
// index.html so client-side routes survive a reload.
func handleClient(dir string) http.HandlerFunc {
	root := os.DirFS(dir)
	files := http.FileServerFS(root)

	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if info, err := fs.Stat(root, name); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		http.ServeFileFS(w, r, root, "index.html")
	}
}
