// Package transport holds the pieces of the node-to-node contract that requests share: the
// generic envelope written ahead of every request and the write consistency ids.
package transport

import (
	"fmt"
	"sort"

	"github.com/pteich/elastic-bulk-by-scroll/stream"
)

// TaskID identifies a task on a node. The zero value means "no parent".
type TaskID struct {
	NodeID string
	ID     int64
}

func (t TaskID) IsSet() bool {
	return t.NodeID != ""
}

func (t TaskID) String() string {
	if !t.IsSet() {
		return "unset"
	}
	return fmt.Sprintf("%s:%d", t.NodeID, t.ID)
}

// Envelope carries the fields every transport request starts with.
type Envelope struct {
	ParentTask TaskID
	Headers    map[string]string
}

func (e *Envelope) Encode(w *stream.Writer) {
	w.WriteString(e.ParentTask.NodeID)
	if e.ParentTask.IsSet() {
		w.WriteLong(e.ParentTask.ID)
	}

	keys := make([]string, 0, len(e.Headers))
	for k := range e.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w.WriteInt(len(keys))
	for _, k := range keys {
		w.WriteString(k)
		w.WriteString(e.Headers[k])
	}
}

func (e *Envelope) Decode(r *stream.Reader) {
	e.ParentTask = TaskID{NodeID: r.ReadString()}
	if e.ParentTask.IsSet() {
		e.ParentTask.ID = r.ReadLong()
	}

	n := r.ReadVInt()
	if n < 0 {
		r.Fail("read headers", fmt.Errorf("%w: negative header count [%d]", stream.ErrMalformed, n))
		return
	}
	e.Headers = nil
	for i := int32(0); i < n && r.Err() == nil; i++ {
		if e.Headers == nil {
			e.Headers = make(map[string]string, n)
		}
		k := r.ReadString()
		e.Headers[k] = r.ReadString()
	}
}
