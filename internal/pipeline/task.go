package pipeline

import "context"

// Task is a named, invokable unit of work.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// Func is the body of a leaf task.
type Func func(ctx context.Context) error

type leaf struct {
	name string
	fn   Func
}

// NewTask builds a leaf task from fn.
func NewTask(name string, fn Func) Task {
	return &leaf{name: name, fn: fn}
}

func (l *leaf) Name() string                  { return l.name }
func (l *leaf) Run(ctx context.Context) error { return l.fn(ctx) }
func (l *leaf) describe() Node                { return Node{Name: l.name, Kind: KindTask} }
