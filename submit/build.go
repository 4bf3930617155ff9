package submit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pteich/elastic-bulk-by-scroll/bulkbyscroll"
	"github.com/pteich/elastic-bulk-by-scroll/elastic"
	"github.com/pteich/elastic-bulk-by-scroll/flags"
	"github.com/pteich/elastic-bulk-by-scroll/search"
	"github.com/pteich/elastic-bulk-by-scroll/transport"
)

var ErrInvalidRawQuery = errors.New("raw query is not a valid JSON object")

// BuildQuery combines the date range and the query flags into one bool query.
func BuildQuery(conf *flags.Flags) (elastic.Query, error) {
	esQuery := elastic.NewBoolQuery()

	if conf.StartDate != "" || conf.EndDate != "" {
		rangeQuery := elastic.NewRangeQuery(conf.Timefield)
		if conf.StartDate != "" {
			rangeQuery = rangeQuery.Gte(conf.StartDate)
		}
		if conf.EndDate != "" {
			rangeQuery = rangeQuery.Lte(conf.EndDate)
		}
		esQuery = esQuery.Filter(rangeQuery)
	}

	if conf.RAWQuery != "" {
		raw := elastic.NewRawStringQuery(conf.RAWQuery)
		if raw == nil {
			return nil, ErrInvalidRawQuery
		}
		esQuery = esQuery.Must(raw)
	} else if conf.Query != "" {
		esQuery = esQuery.Must(elastic.NewQueryStringQuery(conf.Query))
	} else {
		esQuery = esQuery.Must(elastic.NewMatchAllQuery())
	}

	return esQuery, nil
}

// BuildOperation turns the flags into the operation they describe. The result is not validated.
func BuildOperation(conf *flags.Flags) (bulkbyscroll.Operation, error) {
	kind, err := bulkbyscroll.ParseKind(conf.Operation)
	if err != nil {
		return nil, err
	}

	src := search.NewRequest(splitList(conf.Index)...)
	src.Types = splitList(conf.Typelist)
	src.Routing = conf.Routing

	query, err := BuildQuery(conf)
	if err != nil {
		return nil, err
	}
	if err := src.Source.SetQuery(query); err != nil {
		return nil, err
	}
	src.Source.Includes = splitList(conf.Fieldlist)

	var op bulkbyscroll.Operation
	switch kind {
	case bulkbyscroll.KindDeleteByQuery:
		op = bulkbyscroll.NewDeleteByQuery(src)
	case bulkbyscroll.KindUpdateByQuery:
		u := bulkbyscroll.NewUpdateByQuery(src)
		u.Pipeline = conf.Pipeline
		if conf.Script != "" || conf.ScriptParams != "" {
			u.Script = &bulkbyscroll.Script{
				Source: conf.Script,
				Lang:   conf.ScriptLang,
			}
			if conf.ScriptParams != "" {
				u.Script.Params = json.RawMessage(conf.ScriptParams)
			}
		}
		op = u
	case bulkbyscroll.KindReindex:
		x := bulkbyscroll.NewReindex(src, conf.DestIndex)
		x.Destination.Type = conf.DestType
		x.Destination.OpType = conf.OpType
		x.Destination.VersionType = conf.VersionType
		x.Destination.Pipeline = conf.Pipeline
		x.Destination.Routing = conf.DestRouting
		op = x
	}

	if err := applySettings(op.Common(), conf); err != nil {
		return nil, err
	}
	return op, nil
}

func applySettings(r *bulkbyscroll.Request, conf *flags.Flags) error {
	src := r.Source()
	src.Source.Size = conf.ScrollSize
	if conf.ScrollTimeout != "" {
		scroll, err := parseDuration("scroll", conf.ScrollTimeout)
		if err != nil {
			return err
		}
		src.Scroll = scroll
	}

	r.SetMaxDocs(conf.MaxDocs).
		SetRefresh(conf.Refresh).
		SetMaxRetries(conf.MaxRetries)

	if conf.Conflicts != "" {
		if err := r.SetConflicts(conf.Conflicts); err != nil {
			return err
		}
	}

	if conf.Timeout != "" {
		timeout, err := parseDuration("timeout", conf.Timeout)
		if err != nil {
			return err
		}
		r.SetTimeout(timeout)
	}

	if conf.RetryBackoff != "" {
		backoff, err := parseDuration("retryBackoff", conf.RetryBackoff)
		if err != nil {
			return err
		}
		r.SetRetryBackoffInitialTime(backoff)
	}

	consistency, err := transport.ParseConsistency(conf.Consistency)
	if err != nil {
		return err
	}
	r.SetConsistency(consistency)
	return nil
}

func parseDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s [%s]: %w", name, value, err)
	}
	return d, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
