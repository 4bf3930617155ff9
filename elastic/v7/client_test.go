package v7

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/olivere/elastic/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pteich/elastic-bulk-by-scroll/bulkbyscroll"
	"github.com/pteich/elastic-bulk-by-scroll/search"
	"github.com/pteich/elastic-bulk-by-scroll/transport"
)

type recorded struct {
	method string
	path   string
	query  map[string]string
	body   string
}

type fakeCluster struct {
	mu       sync.Mutex
	requests []recorded
	response string
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	query := map[string]string{}
	for k := range r.URL.Query() {
		query[k] = r.URL.Query().Get(k)
	}

	f.mu.Lock()
	f.requests = append(f.requests, recorded{method: r.Method, path: r.URL.Path, query: query, body: string(body)})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(f.response))
}

func newTestClient(t *testing.T, response string) (*Client, *fakeCluster) {
	cluster := &fakeCluster{response: response}
	server := httptest.NewServer(cluster)
	t.Cleanup(server.Close)

	client, err := NewClient([]elastic.ClientOptionFunc{
		SetURL(server.URL),
		SetSniff(false),
		elastic.SetHealthcheck(false),
	})
	require.NoError(t, err)
	t.Cleanup(client.Stop)
	return client, cluster
}

func TestSubmitDeleteByQuery(t *testing.T) {
	client, cluster := newTestClient(t, `{"task":"n1:42"}`)

	op := bulkbyscroll.NewDeleteByQuery(search.NewRequest("logs"))
	op.SetMaxDocs(7).SetRefresh(true)
	require.NoError(t, op.SetConflicts(bulkbyscroll.ConflictsProceed))

	task, err := client.Submit(context.Background(), op)
	require.NoError(t, err)
	assert.Equal(t, transport.TaskID{NodeID: "n1", ID: 42}, task.ID)
	assert.Equal(t, "indices:data/write/delete/byquery", task.Action)

	require.Len(t, cluster.requests, 1)
	req := cluster.requests[0]
	assert.Equal(t, "/logs/_delete_by_query", req.path)
	assert.Equal(t, "false", req.query["wait_for_completion"])
	assert.Equal(t, "true", req.query["refresh"])
	assert.Equal(t, "300000ms", req.query["scroll"])
	assert.Equal(t, "100", req.query["scroll_size"])
	assert.Equal(t, "60000ms", req.query["timeout"])
	assert.JSONEq(t, `{"conflicts":"proceed","max_docs":7}`, req.body)
}

func TestSubmitUpdateByQueryWithScript(t *testing.T) {
	client, cluster := newTestClient(t, `{"task":"n1:43"}`)

	op := bulkbyscroll.NewUpdateByQuery(search.NewRequest("logs"))
	op.Script = &bulkbyscroll.Script{Source: "ctx._source.n++", Lang: "painless"}
	op.Pipeline = "p1"

	_, err := client.Submit(context.Background(), op)
	require.NoError(t, err)

	req := cluster.requests[0]
	assert.Equal(t, "/logs/_update_by_query", req.path)
	assert.Equal(t, "p1", req.query["pipeline"])
	assert.JSONEq(t, `{"conflicts":"abort","script":{"source":"ctx._source.n++","lang":"painless"}}`, req.body)
}

func TestSubmitReindex(t *testing.T) {
	client, cluster := newTestClient(t, `{"task":"n1:44"}`)

	op := bulkbyscroll.NewReindex(search.NewRequest("old"), "new")
	op.SetConsistency(transport.ConsistencyOne)

	task, err := client.Submit(context.Background(), op)
	require.NoError(t, err)
	assert.Equal(t, "reindex from [old] to [new]", task.Description())

	req := cluster.requests[0]
	assert.Equal(t, "/_reindex", req.path)
	assert.Equal(t, "1", req.query["wait_for_active_shards"])
	assert.JSONEq(t, `{"conflicts":"abort","source":{"index":["old"],"size":100},"dest":{"index":"new"}}`, req.body)
}

func TestTaskStatus(t *testing.T) {
	client, cluster := newTestClient(t, `{"completed":true,"task":{"node":"n1","id":42,
		"status":{"total":5,"updated":5,"batches":1,"retries":{"bulk":0,"search":2}}}}`)

	status, err := client.TaskStatus(context.Background(), transport.TaskID{NodeID: "n1", ID: 42})
	require.NoError(t, err)
	assert.True(t, status.Completed)
	assert.Equal(t, int64(5), status.Processed())
	assert.Equal(t, int64(2), status.Retries.Search)
	assert.Equal(t, "/_tasks/n1:42", cluster.requests[0].path)
}

func TestCount(t *testing.T) {
	client, cluster := newTestClient(t, `{"count":3}`)

	src := search.NewRequest("logs")
	src.Source.Query = json.RawMessage(`{"term":{"user":"kimchy"}}`)

	count, err := client.Count(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, "/logs/_count", cluster.requests[0].path)
	assert.JSONEq(t, `{"query":{"term":{"user":"kimchy"}}}`, cluster.requests[0].body)
}

func TestSubmitSendsTypesAndPreference(t *testing.T) {
	src := search.NewRequest("logs")
	src.Types = []string{"doc"}
	src.Preference = "_local"

	tests := []struct {
		name string
		op   bulkbyscroll.Operation
		path string
	}{
		{"delete by query", bulkbyscroll.NewDeleteByQuery(src), "/logs/doc/_delete_by_query"},
		{"update by query", bulkbyscroll.NewUpdateByQuery(src), "/logs/doc/_update_by_query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, cluster := newTestClient(t, `{"task":"n1:45"}`)

			_, err := client.Submit(context.Background(), tt.op)
			require.NoError(t, err)
			require.Len(t, cluster.requests, 1)
			assert.Equal(t, tt.path, cluster.requests[0].path)
			assert.Equal(t, "_local", cluster.requests[0].query["preference"])
		})
	}
}

func TestSubmitReindexWithTypes(t *testing.T) {
	client, cluster := newTestClient(t, `{"task":"n1:46"}`)

	src := search.NewRequest("old")
	src.Types = []string{"doc"}
	op := bulkbyscroll.NewReindex(src, "new")
	op.Destination.Type = "event"

	_, err := client.Submit(context.Background(), op)
	require.NoError(t, err)
	assert.JSONEq(t, `{"conflicts":"abort","source":{"index":["old"],"type":["doc"],"size":100},"dest":{"index":"new","type":"event"}}`,
		cluster.requests[0].body)
}

func TestCountWithTypes(t *testing.T) {
	client, cluster := newTestClient(t, `{"count":1}`)

	src := search.NewRequest("logs")
	src.Types = []string{"doc"}
	src.Preference = "_local"

	_, err := client.Count(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "/logs/doc/_count", cluster.requests[0].path)
	assert.Equal(t, "_local", cluster.requests[0].query["preference"])
}
