// Package livereload pushes change notifications to connected browsers over
// Server-Sent Events and injects the client script into served HTML.
package livereload

// Kind tells the browser how to apply a change.
type Kind string

const (
	// KindReload reloads the whole page.
	KindReload Kind = "reload"
	// KindCSS swaps stylesheets in place without a reload.
	KindCSS Kind = "css"
	// KindImage refreshes image sources in place.
	KindImage Kind = "image"
)

// Notifier receives change notifications from tasks.
type Notifier interface {
	Notify(kind Kind)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(kind Kind)

func (f NotifierFunc) Notify(kind Kind) { f(kind) }

type discard struct{}

func (discard) Notify(Kind) {}

// Discard is a Notifier that drops every notification. Used outside the dev session.
var Discard Notifier = discard{}

// OrDiscard returns n, or Discard when n is nil.
func OrDiscard(n Notifier) Notifier {
	if n == nil {
		return Discard
	}
	return n
}
