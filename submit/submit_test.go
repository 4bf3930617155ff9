package submit

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pteich/elastic-bulk-by-scroll/bulkbyscroll"
	"github.com/pteich/elastic-bulk-by-scroll/elastic"
	"github.com/pteich/elastic-bulk-by-scroll/flags"
	"github.com/pteich/elastic-bulk-by-scroll/formats"
	"github.com/pteich/elastic-bulk-by-scroll/search"
	"github.com/pteich/elastic-bulk-by-scroll/transport"
)

type fakeClient struct {
	mu        sync.Mutex
	statuses  []*elastic.TaskStatus
	statusErr error
	submitted []bulkbyscroll.Operation
	canceled  []transport.TaskID
	count     int64
}

func (f *fakeClient) Submit(_ context.Context, op bulkbyscroll.Operation) (*elastic.Task, error) {
	f.mu.Lock()
	f.submitted = append(f.submitted, op)
	f.mu.Unlock()
	return elastic.NewTask(op, "n1:5", f)
}

func (f *fakeClient) TaskStatus(_ context.Context, _ transport.TaskID) (*elastic.TaskStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s, nil
}

func (f *fakeClient) CancelTask(_ context.Context, id transport.TaskID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, id)
	return nil
}

func (f *fakeClient) Count(_ context.Context, _ *search.Request) (int64, error) {
	return f.count, nil
}

func (f *fakeClient) Stop() {}

func newDeleteByQuery() bulkbyscroll.Operation {
	return bulkbyscroll.NewDeleteByQuery(search.NewRequest("a"))
}

func TestExecuteWithoutWaitPrintsTaskID(t *testing.T) {
	client := &fakeClient{}
	conf := flags.Default()
	var out bytes.Buffer

	err := execute(context.Background(), &conf, client, newDeleteByQuery(), &out, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "n1:5\n", out.String())
	assert.Len(t, client.submitted, 1)
}

func TestExecuteDryRunDoesNotSubmit(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	client := &fakeClient{count: 42}
	conf := flags.Default()
	conf.DryRun = true
	var out bytes.Buffer

	err := execute(context.Background(), &conf, client, newDeleteByQuery(), &out, zap.New(core))
	require.NoError(t, err)
	assert.Empty(t, client.submitted)
	assert.Empty(t, out.String())

	entries := logs.FilterMessage("dry run").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(42), entries[0].ContextMap()["matches"])
	assert.Equal(t, "delete-by-query [a]", entries[0].ContextMap()["description"])
}

func TestFollowUntilCompleted(t *testing.T) {
	client := &fakeClient{statuses: []*elastic.TaskStatus{
		{Total: 10, Deleted: 3},
		{Total: 10, Deleted: 7},
		{Completed: true, Total: 10, Deleted: 10},
	}}
	task, err := client.Submit(context.Background(), newDeleteByQuery())
	require.NoError(t, err)

	var out bytes.Buffer
	err = follow(context.Background(), task, time.Millisecond, formats.CSV{Outfile: &out}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "completed,total,updated,created,deleted,batches,version_conflicts,noops,bulk_retries,search_retries,canceled\n"+
		"false,10,0,0,3,0,0,0,0,0,\n"+
		"false,10,0,0,7,0,0,0,0,0,\n"+
		"true,10,0,0,10,0,0,0,0,0,\n", out.String())
	assert.Empty(t, client.canceled)
}

func TestFollowCancelsTaskOnInterrupt(t *testing.T) {
	client := &fakeClient{statuses: []*elastic.TaskStatus{{Total: 10}}}
	task, err := client.Submit(context.Background(), newDeleteByQuery())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	var out bytes.Buffer
	err = follow(ctx, task, time.Millisecond, formats.JSON{Outfile: &out}, zap.NewNop())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []transport.TaskID{{NodeID: "n1", ID: 5}}, client.canceled)
}

// interruptOnCompletion stops the caller as soon as the completed status arrives.
type interruptOnCompletion struct {
	stop context.CancelFunc
	seen []*elastic.TaskStatus
}

func (f *interruptOnCompletion) Run(_ context.Context, statuses <-chan *elastic.TaskStatus) error {
	for s := range statuses {
		f.seen = append(f.seen, s)
		if s.Completed {
			f.stop()
		}
	}
	return nil
}

func TestFollowDoesNotCancelCompletedTask(t *testing.T) {
	tests := []struct {
		name     string
		statuses []*elastic.TaskStatus
	}{
		{"completed at once", []*elastic.TaskStatus{{Completed: true, Total: 1, Deleted: 1}}},
		{"completed after progress", []*elastic.TaskStatus{{Total: 2, Deleted: 1}, {Completed: true, Total: 2, Deleted: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{statuses: tt.statuses}
			task, err := client.Submit(context.Background(), newDeleteByQuery())
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			output := &interruptOnCompletion{stop: cancel}

			err = follow(ctx, task, time.Millisecond, output, zap.NewNop())
			require.NoError(t, err)
			require.Error(t, ctx.Err())
			assert.Len(t, output.seen, len(tt.statuses))
			assert.Empty(t, client.canceled)
		})
	}
}

func TestFollowReturnsStatusError(t *testing.T) {
	boom := errors.New("boom")
	client := &fakeClient{statusErr: boom}
	task, err := client.Submit(context.Background(), newDeleteByQuery())
	require.NoError(t, err)

	var out bytes.Buffer
	err = follow(context.Background(), task, time.Millisecond, formats.JSON{Outfile: &out}, zap.NewNop())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, client.canceled)
}

func TestCheckOperationLogsEveryViolation(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	op := newDeleteByQuery()
	op.Common().SetMaxDocs(0).SetMaxRetries(-1)
	op.Common().Source().Source.From = 5

	err := checkOperation(op, zap.New(core))
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, 3, logs.FilterMessage("validation failed").Len())

	assert.NoError(t, checkOperation(newDeleteByQuery(), zap.NewNop()))
}

func TestRequestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.bin")

	conf := flags.Default()
	conf.Operation = "reindex"
	conf.Index = "old"
	conf.DestIndex = "new"
	conf.MaxDocs = 10
	op, err := BuildOperation(&conf)
	require.NoError(t, err)
	require.NoError(t, writeOperation(path, op))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())

	read, err := loadOperation(&flags.Flags{Infile: path})
	require.NoError(t, err)
	assert.Equal(t, op.Description(), read.Description())
	assert.Equal(t, 10, read.Common().MaxDocs())
	assert.Equal(t, op.(*bulkbyscroll.Reindex).Destination, read.(*bulkbyscroll.Reindex).Destination)
}

func TestLoadOperationRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.bin")
	require.NoError(t, os.WriteFile(path, []byte{9, 1, 2}, 0o600))

	_, err := loadOperation(&flags.Flags{Infile: path})
	assert.Error(t, err)
}

func TestCreateClientUnsupportedVersion(t *testing.T) {
	conf := flags.Default()
	conf.ElasticVersion = 6
	_, err := createClient(&conf, zap.NewNop())
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}
