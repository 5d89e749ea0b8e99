package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/site"
)

// runNamed runs one named task of the configured site as a pipeline invocation.
func runNamed(ctx context.Context, root *CLI, name string, opts ...site.Option) error {
	s, err := root.openSite(nil, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	task, err := s.Task(name)
	if err != nil {
		return err
	}
	return pipeline.Run(ctx, task)
}

// BuildCmd implements the 'build' command.
type BuildCmd struct{}

func (b *BuildCmd) Run(ctx context.Context, root *CLI) error { return runNamed(ctx, root, "build") }

// ScriptsCmd implements the 'scripts' command.
type ScriptsCmd struct{}

func (c *ScriptsCmd) Run(ctx context.Context, root *CLI) error { return runNamed(ctx, root, "scripts") }

// StylesCmd implements the 'styles' command.
type StylesCmd struct{}

func (c *StylesCmd) Run(ctx context.Context, root *CLI) error { return runNamed(ctx, root, "styles") }

// ImagesCmd implements the 'images' command.
type ImagesCmd struct{}

func (c *ImagesCmd) Run(ctx context.Context, root *CLI) error { return runNamed(ctx, root, "images") }

// AssetsCmd implements the 'assets' command.
type AssetsCmd struct{}

func (c *AssetsCmd) Run(ctx context.Context, root *CLI) error { return runNamed(ctx, root, "assets") }

// TasksCmd implements the 'tasks' command.
type TasksCmd struct{}

func (c *TasksCmd) Run(root *CLI) error {
	s, err := root.openSite(nil)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	for _, name := range []string{"dev", "build", "assets", "deploy"} {
		task, _ := s.Task(name)
		RenderTree(os.Stdout, pipeline.Describe(task))
	}
	return nil
}

var (
	treeName      = color.New(color.Bold).SprintFunc()
	treeKind      = color.New(color.FgCyan).SprintFunc()
	treeRecovered = color.New(color.FgYellow).SprintFunc()
)

// RenderTree prints node and its children as an indented tree.
func RenderTree(w io.Writer, node pipeline.Node) {
	_, _ = fmt.Fprintln(w, label(node))
	renderChildren(w, node.Children, "")
}

func renderChildren(w io.Writer, children []pipeline.Node, prefix string) {
	for i, child := range children {
		branch, next := "├── ", "│   "
		if i == len(children)-1 {
			branch, next = "└── ", "    "
		}
		_, _ = fmt.Fprintln(w, prefix+branch+label(child))
		renderChildren(w, child.Children, prefix+next)
	}
}

func label(n pipeline.Node) string {
	var b strings.Builder
	b.WriteString(treeName(n.Name))
	if n.Kind != pipeline.KindTask {
		b.WriteString(" " + treeKind("("+string(n.Kind)+")"))
	}
	if n.Recovers {
		b.WriteString(" " + treeRecovered("[errors reported, not fatal]"))
	}
	return b.String()
}
