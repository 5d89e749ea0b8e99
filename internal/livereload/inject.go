package livereload

import (
	"bytes"
	"net/http"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxInjectSize = 512 * 1024

// Inject wraps next so that HTML responses load the script at scriptPath just
// before </body>. Responses that are not HTML, not 200, or larger than 512KB pass through.
func Inject(next http.Handler, scriptPath string) http.Handler {
	tag := []byte(`<script async src="` + scriptPath + `"></script>`)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !isPagePath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		// Conditional requests would let browsers keep a copy without the script.
		r = r.Clone(r.Context())
		r.Header.Del("If-Modified-Since")
		r.Header.Del("If-None-Match")

		inj := &injector{ResponseWriter: w, statusCode: http.StatusOK, tag: tag}
		next.ServeHTTP(inj, r)
		inj.finalize()
	})
}

func isPagePath(p string) bool {
	return p == "" || strings.HasSuffix(p, "/") || strings.HasSuffix(p, ".html") || strings.HasSuffix(p, ".htm")
}

type injector struct {
	http.ResponseWriter
	statusCode    int
	buffer        []byte
	buffering     bool
	headerWritten bool
	passthrough   bool
	tag           []byte
}

func (l *injector) WriteHeader(code int) {
	l.statusCode = code
	if l.passthrough {
		l.ResponseWriter.WriteHeader(code)
		l.headerWritten = true
	}
}

func (l *injector) startPassthrough() {
	l.passthrough = true
	l.ResponseWriter.WriteHeader(l.statusCode)
	l.headerWritten = true
}

func (l *injector) Write(data []byte) (int, error) {
	if !l.buffering && !l.passthrough {
		ct := l.Header().Get("Content-Type")
		if l.statusCode != http.StatusOK || (ct != "" && !strings.Contains(ct, "text/html")) {
			l.startPassthrough()
			return l.ResponseWriter.Write(data)
		}
		l.buffering = true
	}
	if l.passthrough {
		return l.ResponseWriter.Write(data)
	}
	if len(l.buffer)+len(data) > maxInjectSize {
		l.Header().Del("Content-Length")
		l.startPassthrough()
		if _, err := l.ResponseWriter.Write(l.buffer); err != nil {
			return 0, err
		}
		l.buffer = nil
		return l.ResponseWriter.Write(data)
	}
	l.buffer = append(l.buffer, data...)
	return len(data), nil
}

func (l *injector) finalize() {
	if l.passthrough {
		return
	}
	if !l.buffering {
		if !l.headerWritten {
			l.ResponseWriter.WriteHeader(l.statusCode)
		}
		return
	}
	out := InsertBeforeBodyEnd(l.buffer, l.tag)
	l.Header().Del("Content-Length")
	l.ResponseWriter.WriteHeader(l.statusCode)
	_, _ = l.ResponseWriter.Write(out)
}

// InsertBeforeBodyEnd returns doc with snippet placed before the last </body> end
// tag, or appended when the document has none. Markup inside scripts, comments and
// attribute values is never mistaken for the tag.
func InsertBeforeBodyEnd(doc, snippet []byte) []byte {
	z := html.NewTokenizer(bytes.NewReader(doc))
	offset, at := 0, -1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := len(z.Raw())
		if tt == html.EndTagToken {
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Body {
				at = offset
			}
		}
		offset += raw
	}
	out := make([]byte, 0, len(doc)+len(snippet))
	if at < 0 {
		out = append(out, doc...)
		return append(out, snippet...)
	}
	out = append(out, doc[:at]...)
	out = append(out, snippet...)
	return append(out, doc[at:]...)
}
