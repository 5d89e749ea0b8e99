package styles

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/assetpipe/internal/fileset"
)

var globImportRe = regexp.MustCompile(`(?m)^([ \t]*)@(import|use|forward)[ \t]+["']([^"'\n]*[*?][^"'\n]*)["'][ \t]*(;?)[ \t]*$`)

// ExpandGlobImports rewrites `@import "dir/**/*.scss";` into one import per
// matching file below dir, in sorted order. Imports without wildcards are left alone.
func ExpandGlobImports(source, dir string) (string, error) {
	var firstErr error
	out := globImportRe.ReplaceAllStringFunc(source, func(stmt string) string {
		m := globImportRe.FindStringSubmatch(stmt)
		indent, rule, pattern, semi := m[1], m[2], m[3], m[4]

		set, err := fileset.New(pattern)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("pattern %q: %w", pattern, err)
			}
			return stmt
		}
		files, err := set.Walk(dir)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return stmt
		}

		lines := make([]string, 0, len(files))
		for _, f := range files {
			switch strings.ToLower(path.Ext(f)) {
			case ".scss", ".sass", ".css":
			default:
				continue
			}
			lines = append(lines, fmt.Sprintf("%s@%s %q%s", indent, rule, f, semi))
		}
		return strings.Join(lines, "\n")
	})
	return out, firstErr
}
