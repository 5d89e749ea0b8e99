// Package esbuildopts translates configured browser targets into esbuild options.
package esbuildopts

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var engines = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"node":    api.EngineNode,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

var languages = map[string]api.Target{
	"esnext": api.ESNext,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
}

// Targets splits entries such as "es2017", "chrome80" or "safari13.1" into an
// esbuild language target and engine list. The language target defaults to ESNext.
func Targets(entries []string) (api.Target, []api.Engine, error) {
	target := api.ESNext
	var out []api.Engine
	for _, raw := range entries {
		e := strings.ToLower(strings.TrimSpace(raw))
		if e == "" {
			continue
		}
		if t, ok := languages[e]; ok {
			target = t
			continue
		}
		i := strings.IndexAny(e, "0123456789")
		if i <= 0 {
			return 0, nil, fmt.Errorf("invalid target %q", raw)
		}
		name, ok := engines[e[:i]]
		if !ok {
			return 0, nil, fmt.Errorf("unknown engine %q in target %q", e[:i], raw)
		}
		out = append(out, api.Engine{Name: name, Version: e[i:]})
	}
	return target, out, nil
}

// Messages joins esbuild diagnostics into one line per message.
func Messages(msgs []api.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			lines = append(lines, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		lines = append(lines, m.Text)
	}
	return strings.Join(lines, "\n")
}
