package v7

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/olivere/elastic/v7"

	"github.com/pteich/elastic-bulk-by-scroll/bulkbyscroll"
	common "github.com/pteich/elastic-bulk-by-scroll/elastic"
	"github.com/pteich/elastic-bulk-by-scroll/search"
	"github.com/pteich/elastic-bulk-by-scroll/transport"
)

type Client struct {
	client *elastic.Client
}

func NewClient(esOpts []elastic.ClientOptionFunc) (*Client, error) {
	client, err := elastic.NewClient(esOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{client: client}, nil
}

// Count returns how many documents src matches.
func (c *Client) Count(ctx context.Context, src *search.Request) (int64, error) {
	q, err := rawQuery(src)
	if err != nil {
		return 0, err
	}
	svc := c.client.Count(src.Indices...).Query(q)
	if len(src.Types) > 0 {
		svc = svc.Type(src.Types...)
	}
	if src.Preference != "" {
		svc = svc.Preference(src.Preference)
	}
	if src.Routing != "" {
		svc = svc.Routing(src.Routing)
	}
	count, err := svc.Do(ctx)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Submit starts op on the cluster without waiting for it to finish.
func (c *Client) Submit(ctx context.Context, op bulkbyscroll.Operation) (*common.Task, error) {
	p := common.CommonParams(op.Common())
	src := op.Common().Source()

	var res *elastic.StartTaskResult
	var err error

	switch o := op.(type) {
	case *bulkbyscroll.DeleteByQuery:
		body, bodyErr := byQueryBody(src, p, nil)
		if bodyErr != nil {
			return nil, bodyErr
		}
		svc := c.client.DeleteByQuery(common.TargetIndices(src.Indices)...).
			Body(body).
			Timeout(common.TimeValue(p.Timeout))
		if len(src.Types) > 0 {
			svc = svc.Type(src.Types...)
		}
		if src.Preference != "" {
			svc = svc.Preference(src.Preference)
		}
		if p.Scroll > 0 {
			svc = svc.Scroll(common.TimeValue(p.Scroll))
		}
		if p.Refresh != nil {
			svc = svc.Refresh("true")
		}
		if p.WaitForActiveShards != "" {
			svc = svc.WaitForActiveShards(p.WaitForActiveShards)
		}
		if p.ScrollSize != nil {
			svc = svc.ScrollSize(*p.ScrollSize)
		}
		if src.Routing != "" {
			svc = svc.Routing(src.Routing)
		}
		res, err = svc.DoAsync(ctx)
	case *bulkbyscroll.UpdateByQuery:
		body, bodyErr := byQueryBody(src, p, o.Script)
		if bodyErr != nil {
			return nil, bodyErr
		}
		svc := c.client.UpdateByQuery(common.TargetIndices(src.Indices)...).
			Body(body).
			Timeout(common.TimeValue(p.Timeout))
		if len(src.Types) > 0 {
			svc = svc.Type(src.Types...)
		}
		if src.Preference != "" {
			svc = svc.Preference(src.Preference)
		}
		if p.Scroll > 0 {
			svc = svc.Scroll(common.TimeValue(p.Scroll))
		}
		if p.Refresh != nil {
			svc = svc.Refresh("true")
		}
		if p.WaitForActiveShards != "" {
			svc = svc.WaitForActiveShards(p.WaitForActiveShards)
		}
		if p.ScrollSize != nil {
			svc = svc.ScrollSize(*p.ScrollSize)
		}
		if o.Pipeline != "" {
			svc = svc.Pipeline(o.Pipeline)
		}
		if src.Routing != "" {
			svc = svc.Routing(src.Routing)
		}
		res, err = svc.DoAsync(ctx)
	case *bulkbyscroll.Reindex:
		svc := c.client.Reindex().
			Body(common.ReindexBody(o)).
			Timeout(common.TimeValue(p.Timeout))
		if p.Refresh != nil {
			svc = svc.Refresh("true")
		}
		if p.WaitForActiveShards != "" {
			svc = svc.WaitForActiveShards(p.WaitForActiveShards)
		}
		res, err = svc.DoAsync(ctx)
	default:
		return nil, fmt.Errorf("%w: %s", common.ErrUnsupported, op.Kind())
	}
	if err != nil {
		return nil, err
	}
	return common.NewTask(op, res.TaskId, c)
}

func (c *Client) TaskStatus(ctx context.Context, id transport.TaskID) (*common.TaskStatus, error) {
	res, err := c.client.TasksGetTask().TaskId(id.String()).Do(ctx)
	if err != nil {
		return nil, err
	}
	if res.Task == nil || res.Task.Status == nil {
		return common.ParseTaskStatus(res.Completed, nil)
	}
	status, err := json.Marshal(res.Task.Status)
	if err != nil {
		return nil, err
	}
	return common.ParseTaskStatus(res.Completed, status)
}

func (c *Client) CancelTask(ctx context.Context, id transport.TaskID) error {
	_, err := c.client.TasksCancel().TaskId(id.String()).Do(ctx)
	return err
}

func (c *Client) Stop() {
	c.client.Stop()
}

// byQueryBody puts the size limit and conflict handling into the body, where every 7.x release
// accepts them. The by-query services take their body as a string.
func byQueryBody(src *search.Request, p common.Params, script *bulkbyscroll.Script) (string, error) {
	body := common.SearchBody(src)
	body["conflicts"] = p.Conflicts
	if p.MaxDocs != nil {
		body["max_docs"] = *p.MaxDocs
	}
	if script != nil {
		body["script"] = common.ScriptBody(script)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func rawQuery(src *search.Request) (elastic.Query, error) {
	data, err := json.Marshal(common.QueryOf(src))
	if err != nil {
		return nil, err
	}
	return elastic.NewRawStringQuery(string(data)), nil
}

func SetHttpClient(httpClient *http.Client) elastic.ClientOptionFunc {
	return elastic.SetHttpClient(httpClient)
}

func SetURL(urls ...string) elastic.ClientOptionFunc {
	return elastic.SetURL(urls...)
}

func SetSniff(enabled bool) elastic.ClientOptionFunc {
	return elastic.SetSniff(enabled)
}

func SetHealthcheckInterval(interval time.Duration) elastic.ClientOptionFunc {
	return elastic.SetHealthcheckInterval(interval)
}

func SetErrorLog(logger *log.Logger) elastic.ClientOptionFunc {
	return elastic.SetErrorLog(logger)
}

func SetTraceLog(logger *log.Logger) elastic.ClientOptionFunc {
	return elastic.SetTraceLog(logger)
}

func SetBasicAuth(username, password string) elastic.ClientOptionFunc {
	return elastic.SetBasicAuth(username, password)
}
