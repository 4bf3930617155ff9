package elastic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pteich/elastic-bulk-by-scroll/bulkbyscroll"
	"github.com/pteich/elastic-bulk-by-scroll/search"
	"github.com/pteich/elastic-bulk-by-scroll/transport"
)

// TaskType is the task type the cluster reports for jobs started over REST.
const TaskType = "transport"

// Client submits operations to a cluster and follows the tasks they start.
type Client interface {
	Submit(ctx context.Context, op bulkbyscroll.Operation) (*Task, error)
	TaskClient
	Stop()
}

type TaskClient interface {
	TaskStatus(ctx context.Context, id transport.TaskID) (*TaskStatus, error)
	CancelTask(ctx context.Context, id transport.TaskID) error
}

type Query = search.Query

// Retries counts the bulk and search requests retried after a rejection.
type Retries struct {
	Bulk   int64 `json:"bulk"`
	Search int64 `json:"search"`
}

// TaskStatus is the progress a bulk-by-scroll task reports.
type TaskStatus struct {
	Completed        bool    `json:"completed"`
	Total            int64   `json:"total"`
	Updated          int64   `json:"updated"`
	Created          int64   `json:"created"`
	Deleted          int64   `json:"deleted"`
	Batches          int64   `json:"batches"`
	VersionConflicts int64   `json:"version_conflicts"`
	Noops            int64   `json:"noops"`
	Retries          Retries `json:"retries"`
	Canceled         string  `json:"canceled,omitempty"`
}

// Processed is the number of documents the task is done with.
func (s *TaskStatus) Processed() int64 {
	return s.Updated + s.Created + s.Deleted + s.VersionConflicts + s.Noops
}

// Task is a job running on the cluster.
type Task struct {
	ID          transport.TaskID
	Type        string
	Action      string
	description string
	client      TaskClient
}

func (t *Task) Description() string {
	return t.description
}

func (t *Task) Status(ctx context.Context) (*TaskStatus, error) {
	return t.client.TaskStatus(ctx, t.ID)
}

func (t *Task) Cancel(ctx context.Context) error {
	return t.client.CancelTask(ctx, t.ID)
}

// NewTask turns the task id a cluster answered with into a handle for op.
func NewTask(op bulkbyscroll.Operation, rawID string, client TaskClient) (*Task, error) {
	id, err := ParseTaskID(rawID)
	if err != nil {
		return nil, err
	}
	task := bulkbyscroll.CreateTask(op, func(n int64, typ, action, description string) bulkbyscroll.Task {
		return &Task{
			ID:          transport.TaskID{NodeID: id.NodeID, ID: n},
			Type:        typ,
			Action:      action,
			description: description,
			client:      client,
		}
	}, id.ID, TaskType)
	return task.(*Task), nil
}

// ParseTaskID parses ids of the form "node:123".
func ParseTaskID(s string) (transport.TaskID, error) {
	node, num, ok := strings.Cut(s, ":")
	if !ok || node == "" {
		return transport.TaskID{}, fmt.Errorf("malformed task id [%s]", s)
	}
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return transport.TaskID{}, fmt.Errorf("malformed task id [%s]: %w", s, err)
	}
	return transport.TaskID{NodeID: node, ID: n}, nil
}

// ParseTaskStatus reads the body of a task lookup.
func ParseTaskStatus(completed bool, status json.RawMessage) (*TaskStatus, error) {
	s := &TaskStatus{}
	if len(status) > 0 {
		if err := json.Unmarshal(status, s); err != nil {
			return nil, fmt.Errorf("decode task status: %w", err)
		}
	}
	s.Completed = completed
	return s, nil
}

// Params are the REST parameters shared by all three operations.
type Params struct {
	Conflicts           string
	MaxDocs             *int
	Refresh             *bool
	Timeout             time.Duration
	WaitForActiveShards string
	Scroll              time.Duration
	ScrollSize          *int
}

// TimeValue renders d the way the REST layer expects time units.
func TimeValue(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
}

func CommonParams(r *bulkbyscroll.Request) Params {
	p := Params{
		Conflicts:           r.Conflicts(),
		Timeout:             r.Timeout(),
		WaitForActiveShards: r.Consistency().WaitForActiveShards(),
	}
	if r.MaxDocs() != bulkbyscroll.SizeAllMatches {
		maxDocs := r.MaxDocs()
		p.MaxDocs = &maxDocs
	}
	if r.Refresh() {
		refresh := true
		p.Refresh = &refresh
	}
	if src := r.Source(); src != nil {
		p.Scroll = src.Scroll
		if src.Source != nil && src.Source.Size != search.SizeUnset {
			size := src.Source.Size
			p.ScrollSize = &size
		}
	}
	return p
}

// SearchBody is the search part of a by-query request body.
func SearchBody(src *search.Request) map[string]interface{} {
	if src.Source == nil {
		return map[string]interface{}{}
	}
	return src.Source.Body()
}

// ReindexBody builds the body of a reindex request. Reindex takes its conflicts and size limit
// in the body rather than as parameters.
func ReindexBody(x *bulkbyscroll.Reindex) map[string]interface{} {
	src := x.Source()
	source := map[string]interface{}{}
	if len(src.Indices) > 0 {
		source["index"] = src.Indices
	}
	if len(src.Types) > 0 {
		source["type"] = src.Types
	}
	for k, v := range SearchBody(src) {
		source[k] = v
	}
	if src.Source != nil {
		if src.Source.Size != search.SizeUnset {
			source["size"] = src.Source.Size
		}
	}

	dest := map[string]interface{}{"index": x.Destination.Index}
	for k, v := range map[string]string{
		"type":         x.Destination.Type,
		"op_type":      x.Destination.OpType,
		"version_type": x.Destination.VersionType,
		"pipeline":     x.Destination.Pipeline,
		"routing":      x.Destination.Routing,
	} {
		if v != "" {
			dest[k] = v
		}
	}

	body := map[string]interface{}{
		"conflicts": x.Conflicts(),
		"source":    source,
		"dest":      dest,
	}
	if x.MaxDocs() != bulkbyscroll.SizeAllMatches {
		body["max_docs"] = x.MaxDocs()
	}
	return body
}

// ScriptBody renders the script of an update-by-query.
func ScriptBody(s *bulkbyscroll.Script) map[string]interface{} {
	script := map[string]interface{}{"source": s.Source}
	if s.Lang != "" {
		script["lang"] = s.Lang
	}
	if len(s.Params) > 0 {
		script["params"] = s.Params
	}
	return script
}

// QueryOf returns the query of src, match_all when there is none.
func QueryOf(src *search.Request) interface{} {
	if src.Source == nil || len(src.Source.Query) == 0 {
		return NewMatchAllQuery().Build()
	}
	return src.Source.Query
}

func RoutingOf(src *search.Request) []string {
	if src.Routing == "" {
		return nil
	}
	return strings.Split(src.Routing, ",")
}

// TargetIndices targets every index when none are named, the by-query endpoints require one.
func TargetIndices(indices []string) []string {
	if len(indices) == 0 {
		return []string{"_all"}
	}
	return indices
}

// ErrUnsupported is returned for operations a client cannot submit.
var ErrUnsupported = errors.New("unsupported operation")

// CheckTypeless fails for requests that name document types, which clusters from 8.0 on no
// longer have. Sending them without the types would touch documents of every type.
func CheckTypeless(op bulkbyscroll.Operation) error {
	if err := CheckTypelessSearch(op.Common().Source()); err != nil {
		return fmt.Errorf("%s: %w", op.Kind(), err)
	}
	if x, ok := op.(*bulkbyscroll.Reindex); ok && x.Destination.Type != "" {
		return fmt.Errorf("%w: reindex into type [%s]", ErrUnsupported, x.Destination.Type)
	}
	return nil
}

// CheckTypelessSearch is CheckTypeless for a bare search.
func CheckTypelessSearch(src *search.Request) error {
	if src != nil && len(src.Types) > 0 {
		return fmt.Errorf("%w: search restricted to types %v", ErrUnsupported, src.Types)
	}
	return nil
}
