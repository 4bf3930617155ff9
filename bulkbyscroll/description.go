package bulkbyscroll

import (
	"context"
	"strings"
)

// Description names the indices and types the job reads, e.g. "[a, b]" or "[all indices][doc]".
// It is only used for display.
func (r *Request) Description() string {
	var b strings.Builder
	if r.source != nil && len(r.source.Indices) > 0 {
		writeList(&b, r.source.Indices)
	} else {
		b.WriteString("[all indices]")
	}
	if r.source != nil && len(r.source.Types) > 0 {
		writeList(&b, r.source.Types)
	}
	return b.String()
}

func writeList(b *strings.Builder, items []string) {
	b.WriteByte('[')
	b.WriteString(strings.Join(items, ", "))
	b.WriteByte(']')
}

// Task is the handle an executor returns for a submitted job. Progress and cancellation belong to
// the executor; the request keeps no reference to it.
type Task interface {
	Description() string
	Cancel(ctx context.Context) error
}

// TaskFactory is the executor's entry point for creating a task.
type TaskFactory func(id int64, typ, action, description string) Task

// CreateTask asks newTask for a handle, passing the operation's action name and description.
func CreateTask(op Operation, newTask TaskFactory, id int64, typ string) Task {
	return newTask(id, typ, op.Kind().Action(), op.Description())
}
