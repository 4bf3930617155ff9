package v9

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pteich/elastic-bulk-by-scroll/bulkbyscroll"
	"github.com/pteich/elastic-bulk-by-scroll/elastic"
	"github.com/pteich/elastic-bulk-by-scroll/search"
	"github.com/pteich/elastic-bulk-by-scroll/transport"
)

type recordingTransport struct {
	requests []*http.Request
	bodies   []string
	response string
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body := ""
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		body = string(data)
	}
	rt.requests = append(rt.requests, req)
	rt.bodies = append(rt.bodies, body)

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("X-Elastic-Product", "Elasticsearch")
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(rt.response)),
	}, nil
}

func newTestClient(t *testing.T, response string) (*Client, *recordingTransport) {
	rt := &recordingTransport{response: response}
	client, err := NewClient(elasticsearch.Config{
		Addresses: []string{"http://localhost:9200"},
		Transport: rt,
	})
	require.NoError(t, err)
	return client, rt
}

func TestSubmitDeleteByQuery(t *testing.T) {
	client, rt := newTestClient(t, `{"task":"n1:42"}`)

	op := bulkbyscroll.NewDeleteByQuery(search.NewRequest("logs-a", "logs-b"))
	op.SetMaxDocs(500).SetRefresh(true).SetConsistency(transport.ConsistencyOne)
	require.NoError(t, op.SetConflicts(bulkbyscroll.ConflictsProceed))

	task, err := client.Submit(context.Background(), op)
	require.NoError(t, err)
	assert.Equal(t, transport.TaskID{NodeID: "n1", ID: 42}, task.ID)
	assert.Equal(t, "delete-by-query [logs-a, logs-b]", task.Description())

	require.Len(t, rt.requests, 1)
	req := rt.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/logs-a,logs-b/_delete_by_query", req.URL.Path)

	q := req.URL.Query()
	assert.Equal(t, "proceed", q.Get("conflicts"))
	assert.Equal(t, "500", q.Get("max_docs"))
	assert.Equal(t, "true", q.Get("refresh"))
	assert.Equal(t, "300000ms", q.Get("scroll"))
	assert.Equal(t, "100", q.Get("scroll_size"))
	assert.Equal(t, "60000ms", q.Get("timeout"))
	assert.Equal(t, "1", q.Get("wait_for_active_shards"))
	assert.Equal(t, "false", q.Get("wait_for_completion"))
	assert.JSONEq(t, `{}`, rt.bodies[0])
}

func TestSubmitUpdateByQuery(t *testing.T) {
	client, rt := newTestClient(t, `{"task":"n2:1"}`)

	src := search.NewRequest()
	src.Source.Query = json.RawMessage(`{"term":{"user":"kimchy"}}`)
	op := bulkbyscroll.NewUpdateByQuery(src)
	op.Script = &bulkbyscroll.Script{Source: "ctx._source.n++"}
	op.Pipeline = "enrich"

	_, err := client.Submit(context.Background(), op)
	require.NoError(t, err)

	req := rt.requests[0]
	assert.Equal(t, "/_all/_update_by_query", req.URL.Path)
	assert.Equal(t, "enrich", req.URL.Query().Get("pipeline"))
	assert.Equal(t, "abort", req.URL.Query().Get("conflicts"))
	assert.JSONEq(t, `{"query":{"term":{"user":"kimchy"}},"script":{"source":"ctx._source.n++"}}`, rt.bodies[0])
}

func TestSubmitReindex(t *testing.T) {
	client, rt := newTestClient(t, `{"task":"n3:9"}`)

	op := bulkbyscroll.NewReindex(search.NewRequest("old"), "new")

	task, err := client.Submit(context.Background(), op)
	require.NoError(t, err)
	assert.Equal(t, "indices:data/write/reindex", task.Action)

	req := rt.requests[0]
	assert.Equal(t, "/_reindex", req.URL.Path)
	assert.Equal(t, "false", req.URL.Query().Get("wait_for_completion"))
	assert.JSONEq(t, `{"conflicts":"abort","source":{"index":["old"],"size":100},"dest":{"index":"new"}}`, rt.bodies[0])
}

func TestTaskStatusAndCancel(t *testing.T) {
	client, rt := newTestClient(t, `{"completed":false,"task":{"node":"n1","id":42,
		"status":{"total":100,"deleted":40,"batches":1,"version_conflicts":2,"retries":{"bulk":1,"search":0}}}}`)

	status, err := client.TaskStatus(context.Background(), transport.TaskID{NodeID: "n1", ID: 42})
	require.NoError(t, err)
	assert.False(t, status.Completed)
	assert.Equal(t, int64(100), status.Total)
	assert.Equal(t, int64(42), status.Processed())
	assert.Equal(t, int64(1), status.Retries.Bulk)
	assert.Equal(t, "/_tasks/n1:42", rt.requests[0].URL.Path)

	require.NoError(t, client.CancelTask(context.Background(), transport.TaskID{NodeID: "n1", ID: 42}))
	assert.Equal(t, "/_tasks/n1:42/_cancel", rt.requests[1].URL.Path)
}

func TestCount(t *testing.T) {
	client, rt := newTestClient(t, `{"count":17}`)

	count, err := client.Count(context.Background(), search.NewRequest("a"))
	require.NoError(t, err)
	assert.Equal(t, int64(17), count)
	assert.Equal(t, "/a/_count", rt.requests[0].URL.Path)
	assert.JSONEq(t, `{"query":{"match_all":{}}}`, rt.bodies[0])
}

func TestTypedRequestsAreRejected(t *testing.T) {
	typed := search.NewRequest("logs")
	typed.Types = []string{"doc"}
	intoType := bulkbyscroll.NewReindex(search.NewRequest("old"), "new")
	intoType.Destination.Type = "event"

	tests := []struct {
		name string
		op   bulkbyscroll.Operation
	}{
		{"delete by query", bulkbyscroll.NewDeleteByQuery(typed)},
		{"update by query", bulkbyscroll.NewUpdateByQuery(typed)},
		{"reindex from type", bulkbyscroll.NewReindex(typed, "new")},
		{"reindex into type", intoType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, rt := newTestClient(t, `{"task":"n1:42"}`)
			_, err := client.Submit(context.Background(), tt.op)
			assert.ErrorIs(t, err, elastic.ErrUnsupported)
			assert.Empty(t, rt.requests)
		})
	}

	client, rt := newTestClient(t, `{"count":1}`)
	_, err := client.Count(context.Background(), typed)
	assert.ErrorIs(t, err, elastic.ErrUnsupported)
	assert.Empty(t, rt.requests)
}

func TestPreferenceIsSent(t *testing.T) {
	client, rt := newTestClient(t, `{"task":"n1:42"}`)

	src := search.NewRequest("logs")
	src.Preference = "_local"
	_, err := client.Submit(context.Background(), bulkbyscroll.NewUpdateByQuery(src))
	require.NoError(t, err)
	require.Len(t, rt.requests, 1)
	assert.Equal(t, "_local", rt.requests[0].URL.Query().Get("preference"))
}
