package config

import "git.home.luguber.info/inful/assetpipe/internal/foundation/normalization"

// Preprocessor selects the stylesheet language compiled by the styles task.
type Preprocessor string

const (
	PreprocessorSass Preprocessor = "sass"
	PreprocessorCSS  Preprocessor = "css"
)

// Preprocessors lists every supported preprocessor in declaration order.
func Preprocessors() []Preprocessor {
	return []Preprocessor{PreprocessorSass, PreprocessorCSS}
}

var preprocessorNormalizer = normalization.NewNormalizer(map[string]Preprocessor{
	"sass": PreprocessorSass,
	"scss": PreprocessorSass,
	"css":  PreprocessorCSS,
})

// NormalizePreprocessor canonicalizes user input (case-insensitive). Returns empty string if unknown.
func NormalizePreprocessor(raw string) Preprocessor {
	p, _ := preprocessorNormalizer.Normalize(raw)
	return p
}

// WatchBackend selects how the dev watcher observes the source tree.
type WatchBackend string

const (
	WatchBackendPolling WatchBackend = "polling"
	WatchBackendNative  WatchBackend = "native"
)

var watchBackendNormalizer = normalization.NewNormalizer(map[string]WatchBackend{
	"polling":  WatchBackendPolling,
	"poll":     WatchBackendPolling,
	"native":   WatchBackendNative,
	"fsnotify": WatchBackendNative,
})

// NormalizeWatchBackend canonicalizes user input. Returns empty string if unknown.
func NormalizeWatchBackend(raw string) WatchBackend {
	b, _ := watchBackendNormalizer.Normalize(raw)
	return b
}
