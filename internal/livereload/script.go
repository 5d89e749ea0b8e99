package livereload

import (
	"fmt"
	"net/http"
)

// Script returns the browser client that listens on eventsPath.
func Script(eventsPath string) string {
	return fmt.Sprintf(`(() => {
  if (window.__ASSETPIPE_LR__) return;
  window.__ASSETPIPE_LR__ = true;
  const bust = (url) => {
    const u = new URL(url, location.href);
    u.searchParams.set('livereload', Date.now());
    return u.toString();
  };
  const apply = {
    css() {
      document.querySelectorAll('link[rel="stylesheet"]').forEach((l) => { l.href = bust(l.href); });
    },
    image() {
      document.querySelectorAll('img[src]').forEach((img) => { img.src = bust(img.src); });
    },
    reload() { location.reload(); },
  };
  function connect() {
    const es = new EventSource(%q);
    es.onmessage = (e) => {
      try {
        const ev = JSON.parse(e.data);
        (apply[ev.kind] || apply.reload)();
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`, eventsPath)
}

// ScriptHandler serves the client script.
func ScriptHandler(eventsPath string) http.Handler {
	body := []byte(Script(eventsPath))
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(body)
	})
}
