package scripts

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// providePlan is the esbuild rendering of a global symbol map: an inject shim
// exporting every identifier key and defines for dotted keys.
type providePlan struct {
	shim    string
	defines map[string]string
}

func isRelativeModule(m string) bool {
	return strings.HasPrefix(m, "./") || strings.HasPrefix(m, "../")
}

// planProvide renders provide (global -> module). Relative module paths resolve
// from sourceRoot.
func planProvide(provide map[string]string, sourceRoot string) providePlan {
	if len(provide) == 0 {
		return providePlan{}
	}
	keys := make([]string, 0, len(provide))
	for k := range provide {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	modules := map[string]string{} // module -> local binding
	var imports, exports []string
	defines := map[string]string{}
	for _, key := range keys {
		mod := provide[key]
		if isRelativeModule(mod) {
			mod = filepath.ToSlash(filepath.Join(sourceRoot, mod))
		}
		local, ok := modules[mod]
		if !ok {
			local = fmt.Sprintf("__assetpipe_provide_%d", len(modules))
			modules[mod] = local
			imports = append(imports, fmt.Sprintf("import %s from %q;", local, mod))
			exports = append(exports, local)
		}
		if strings.Contains(key, ".") {
			defines[key] = local
			continue
		}
		exports = append(exports, fmt.Sprintf("%s as %s", local, key))
	}

	var b strings.Builder
	for _, line := range imports {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "export { %s };\n", strings.Join(exports, ", "))
	return providePlan{shim: b.String(), defines: defines}
}

func (p providePlan) apply(opts *api.BuildOptions, shimPath string) {
	if p.shim == "" {
		return
	}
	opts.Inject = []string{shimPath}
	opts.Define = p.defines
}
