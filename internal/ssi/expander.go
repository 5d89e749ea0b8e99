// Package ssi expands server-side include directives in HTML.
//
// Supported directives:
//
//	<!--#include file="header.html" -->      relative to the including file
//	<!--#include virtual="/partials/nav.html" -->  absolute from the site root, or relative
//	<!--#set var="title" value="Home" -->
//	<!--#echo var="title" -->
//
// DOCUMENT_NAME and DOCUMENT_URI are predefined. Variables are shared between a
// document and everything it includes. Other directives are left untouched.
package ssi

import (
	"bytes"
	"fmt"
	"html"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// MaxDepth bounds include nesting.
const MaxDepth = 16

var (
	directiveRe = regexp.MustCompile(`<!--#([a-zA-Z]+)((?:\s+[a-zA-Z_]+\s*=\s*(?:"[^"]*"|'[^']*'))*)\s*-->`)
	attrRe      = regexp.MustCompile(`([a-zA-Z_]+)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

// Expander resolves directives against files below a site root.
type Expander struct {
	root    string
	lenient bool
}

// Option configures an Expander.
type Option func(*Expander)

// Lenient renders failed includes as HTML comments instead of returning an error.
func Lenient() Option {
	return func(e *Expander) { e.lenient = true }
}

// NewExpander creates an expander rooted at root.
func NewExpander(root string, opts ...Option) *Expander {
	e := &Expander{root: root}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExpandFile reads rel (slash-separated, relative to the root) and expands it.
func (e *Expander) ExpandFile(rel string) ([]byte, error) {
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	data, err := os.ReadFile(e.abs(rel))
	if err != nil {
		return nil, ferrors.IncludeError("failed to read document").WithCause(err).WithContext("file", rel).Build()
	}
	vars := map[string]string{
		"DOCUMENT_NAME": path.Base(rel),
		"DOCUMENT_URI":  "/" + rel,
	}
	return e.expand(data, rel, vars, []string{rel})
}

func (e *Expander) abs(rel string) string {
	return filepath.Join(e.root, filepath.FromSlash(rel))
}

func (e *Expander) expand(data []byte, rel string, vars map[string]string, stack []string) ([]byte, error) {
	var out bytes.Buffer
	last := 0
	for _, m := range directiveRe.FindAllSubmatchIndex(data, -1) {
		out.Write(data[last:m[0]])
		last = m[1]

		name := strings.ToLower(string(data[m[2]:m[3]]))
		attrs := parseAttrs(data[m[4]:m[5]])
		switch name {
		case "include":
			expanded, err := e.include(attrs, rel, vars, stack)
			if err != nil {
				if !e.lenient {
					return nil, err
				}
				slog.Warn("Include failed", logfields.File(rel), logfields.Error(err))
				fmt.Fprintf(&out, "<!-- include error: %s -->", strings.ReplaceAll(err.Error(), "--", "- -"))
				continue
			}
			out.Write(expanded)
		case "set":
			if v := attrValue(attrs, "var"); v != "" {
				vars[v] = attrValue(attrs, "value")
			}
		case "echo":
			val, ok := vars[attrValue(attrs, "var")]
			if !ok {
				val = "(none)"
			}
			out.WriteString(html.EscapeString(val))
		default:
			out.Write(data[m[0]:m[1]])
		}
	}
	out.Write(data[last:])
	return out.Bytes(), nil
}

func (e *Expander) include(attrs [][2]string, rel string, vars map[string]string, stack []string) ([]byte, error) {
	target, err := resolve(attrs, rel)
	if err != nil {
		return nil, err
	}
	if slices.Contains(stack, target) {
		return nil, ferrors.IncludeError("include cycle").
			WithContext("file", rel).WithContext("include", target).
			WithContext("chain", strings.Join(append(stack, target), " -> ")).Build()
	}
	if len(stack) >= MaxDepth {
		return nil, ferrors.IncludeError(fmt.Sprintf("include depth exceeds %d", MaxDepth)).
			WithContext("file", rel).WithContext("include", target).Build()
	}
	data, err := os.ReadFile(e.abs(target))
	if err != nil {
		return nil, ferrors.IncludeError("include not found").
			WithCause(err).WithContext("file", rel).WithContext("include", target).Build()
	}
	return e.expand(data, target, vars, append(stack, target))
}

// resolve returns the root-relative path an include directive names.
func resolve(attrs [][2]string, rel string) (string, error) {
	file, virtual := attrValue(attrs, "file"), attrValue(attrs, "virtual")
	var p string
	switch {
	case file != "":
		if path.IsAbs(file) {
			return "", ferrors.IncludeError("include file must be relative").
				WithContext("file", rel).WithContext("include", file).Build()
		}
		p = path.Join(path.Dir(rel), file)
	case virtual != "":
		if path.IsAbs(virtual) {
			p = path.Clean(virtual)
		} else {
			p = path.Join(path.Dir(rel), virtual)
		}
	default:
		return "", ferrors.IncludeError("include needs a file or virtual attribute").
			WithContext("file", rel).Build()
	}
	p = strings.TrimPrefix(p, "/")
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", ferrors.IncludeError("include escapes the site root").
			WithContext("file", rel).WithContext("include", p).Build()
	}
	return p, nil
}

func parseAttrs(raw []byte) [][2]string {
	var attrs [][2]string
	for _, m := range attrRe.FindAllSubmatch(raw, -1) {
		val := m[2]
		if val == nil {
			val = m[3]
		}
		attrs = append(attrs, [2]string{strings.ToLower(string(m[1])), string(val)})
	}
	return attrs
}

func attrValue(attrs [][2]string, key string) string {
	for _, a := range attrs {
		if a[0] == key {
			return a[1]
		}
	}
	return ""
}
