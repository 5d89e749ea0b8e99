package pipeline

// Kind names the composition a Node stands for.
type Kind string

const (
	KindTask       Kind = "task"
	KindSequential Kind = "series"
	KindParallel   Kind = "parallel"
	KindSupervise  Kind = "supervise"
)

// Node is one entry of a pipeline's composition tree.
type Node struct {
	Name     string
	Kind     Kind
	Recovers bool // errors are logged, never returned
	Children []Node
}

type describer interface {
	describe() Node
}

// Describe returns the composition tree of task. Tasks built outside this
// package are reported as leaves.
func Describe(task Task) Node {
	if d, ok := task.(describer); ok {
		return d.describe()
	}
	return Node{Name: task.Name(), Kind: KindTask}
}

func group(name string, kind Kind, tasks []Task) Node {
	n := Node{Name: name, Kind: kind, Children: make([]Node, 0, len(tasks))}
	for _, t := range tasks {
		n.Children = append(n.Children, Describe(t))
	}
	return n
}
