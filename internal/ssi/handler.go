package ssi

import (
	"bytes"
	"net/http"
	"os"
	"path"
	"strings"
	"time"
)

// Handler serves markup below the expander's root with directives expanded on
// the fly and hands every other request to next.
func Handler(e *Expander, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		rel := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if strings.HasSuffix(r.URL.Path, "/") {
			rel = path.Join(rel, "index.html")
		}
		if ext := path.Ext(rel); ext != ".html" && ext != ".htm" {
			next.ServeHTTP(w, r)
			return
		}
		info, err := os.Stat(e.abs(rel))
		if err != nil || !info.Mode().IsRegular() {
			next.ServeHTTP(w, r)
			return
		}

		out, err := e.ExpandFile(rel)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeContent(w, r, rel, time.Time{}, bytes.NewReader(out))
	})
}
