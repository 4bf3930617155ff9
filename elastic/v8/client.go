package v8

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/pteich/elastic-bulk-by-scroll/bulkbyscroll"
	"github.com/pteich/elastic-bulk-by-scroll/elastic"
	"github.com/pteich/elastic-bulk-by-scroll/search"
	"github.com/pteich/elastic-bulk-by-scroll/transport"
)

type Client struct {
	client *elasticsearch.Client
}

func NewClient(cfg elasticsearch.Config) (*Client, error) {
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{client: client}, nil
}

// Count returns how many documents src matches.
func (c *Client) Count(ctx context.Context, src *search.Request) (int64, error) {
	if err := elastic.CheckTypelessSearch(src); err != nil {
		return 0, err
	}
	body, err := encodeBody(map[string]interface{}{"query": elastic.QueryOf(src)})
	if err != nil {
		return 0, err
	}

	req := esapi.CountRequest{
		Index:      src.Indices,
		Routing:    elastic.RoutingOf(src),
		Preference: src.Preference,
		Body:       body,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, errors.New(res.String())
	}

	var resp struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Submit starts op on the cluster without waiting for it to finish.
func (c *Client) Submit(ctx context.Context, op bulkbyscroll.Operation) (*elastic.Task, error) {
	if err := elastic.CheckTypeless(op); err != nil {
		return nil, err
	}
	p := elastic.CommonParams(op.Common())
	src := op.Common().Source()
	wait := false

	var req esapi.Request
	switch o := op.(type) {
	case *bulkbyscroll.DeleteByQuery:
		body, err := encodeBody(elastic.SearchBody(src))
		if err != nil {
			return nil, err
		}
		req = esapi.DeleteByQueryRequest{
			Index:               elastic.TargetIndices(src.Indices),
			Body:                body,
			Conflicts:           p.Conflicts,
			MaxDocs:             p.MaxDocs,
			Refresh:             p.Refresh,
			Routing:             elastic.RoutingOf(src),
			Preference:          src.Preference,
			Scroll:              p.Scroll,
			ScrollSize:          p.ScrollSize,
			Timeout:             p.Timeout,
			WaitForActiveShards: p.WaitForActiveShards,
			WaitForCompletion:   &wait,
		}
	case *bulkbyscroll.UpdateByQuery:
		b := elastic.SearchBody(src)
		if o.Script != nil {
			b["script"] = elastic.ScriptBody(o.Script)
		}
		body, err := encodeBody(b)
		if err != nil {
			return nil, err
		}
		req = esapi.UpdateByQueryRequest{
			Index:               elastic.TargetIndices(src.Indices),
			Body:                body,
			Conflicts:           p.Conflicts,
			MaxDocs:             p.MaxDocs,
			Pipeline:            o.Pipeline,
			Refresh:             p.Refresh,
			Routing:             elastic.RoutingOf(src),
			Preference:          src.Preference,
			Scroll:              p.Scroll,
			ScrollSize:          p.ScrollSize,
			Timeout:             p.Timeout,
			WaitForActiveShards: p.WaitForActiveShards,
			WaitForCompletion:   &wait,
		}
	case *bulkbyscroll.Reindex:
		body, err := encodeBody(elastic.ReindexBody(o))
		if err != nil {
			return nil, err
		}
		req = esapi.ReindexRequest{
			Body:                body,
			Refresh:             p.Refresh,
			Scroll:              p.Scroll,
			Timeout:             p.Timeout,
			WaitForActiveShards: p.WaitForActiveShards,
			WaitForCompletion:   &wait,
		}
	default:
		return nil, fmt.Errorf("%w: %s", elastic.ErrUnsupported, op.Kind())
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.New(res.String())
	}

	var resp struct {
		Task string `json:"task"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, err
	}
	return elastic.NewTask(op, resp.Task, c)
}

func (c *Client) TaskStatus(ctx context.Context, id transport.TaskID) (*elastic.TaskStatus, error) {
	req := esapi.TasksGetRequest{
		TaskID: id.String(),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.New(res.String())
	}

	var resp struct {
		Completed bool `json:"completed"`
		Task      struct {
			Status json.RawMessage `json:"status"`
		} `json:"task"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, err
	}
	return elastic.ParseTaskStatus(resp.Completed, resp.Task.Status)
}

func (c *Client) CancelTask(ctx context.Context, id transport.TaskID) error {
	req := esapi.TasksCancelRequest{
		TaskID: id.String(),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.New(res.String())
	}
	return nil
}

func (c *Client) Stop() {}

func encodeBody(body map[string]interface{}) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	return &buf, nil
}

func NewConfig(url string, username string, password string, httpClient *http.Client) elasticsearch.Config {
	cfg := elasticsearch.Config{
		Addresses: []string{url},
		Username:  username,
		Password:  password,
		Transport: httpClient.Transport,
	}
	return cfg
}
