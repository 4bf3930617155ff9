package elastic

import "encoding/json"

type QueryBuilder struct {
	query map[string]interface{}
}

type BoolQuery struct {
	builder *QueryBuilder
}

type RangeQuery struct {
	builder *QueryBuilder
	field   string
}

type QueryStringQuery struct {
	builder *QueryBuilder
	query   string
}

type MatchAllQuery struct {
	builder *QueryBuilder
}

type RawStringQuery struct {
	builder *QueryBuilder
}

func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		query: make(map[string]interface{}),
	}
}

func NewBoolQuery() *BoolQuery {
	return &BoolQuery{
		builder: NewQueryBuilder(),
	}
}

func (q *BoolQuery) Must(query Query) *BoolQuery {
	q.add("must", query)
	return q
}

func (q *BoolQuery) Filter(query Query) *BoolQuery {
	q.add("filter", query)
	return q
}

func (q *BoolQuery) add(clause string, query Query) {
	if q.builder.query["bool"] == nil {
		q.builder.query["bool"] = make(map[string]interface{})
	}
	boolQuery := q.builder.query["bool"].(map[string]interface{})
	if boolQuery[clause] == nil {
		boolQuery[clause] = []interface{}{}
	}
	boolQuery[clause] = append(boolQuery[clause].([]interface{}), query.Build())
}

func (q *BoolQuery) Build() map[string]interface{} {
	return q.builder.Build()
}

func NewRangeQuery(field string) *RangeQuery {
	return &RangeQuery{
		builder: NewQueryBuilder(),
		field:   field,
	}
}

func (q *RangeQuery) Gte(value string) *RangeQuery {
	q.bound("gte", value)
	return q
}

func (q *RangeQuery) Lte(value string) *RangeQuery {
	q.bound("lte", value)
	return q
}

func (q *RangeQuery) bound(op, value string) {
	if q.builder.query["range"] == nil {
		q.builder.query["range"] = make(map[string]interface{})
	}
	rangeQuery := q.builder.query["range"].(map[string]interface{})
	if rangeQuery[q.field] == nil {
		rangeQuery[q.field] = make(map[string]interface{})
	}
	fieldQuery := rangeQuery[q.field].(map[string]interface{})
	fieldQuery[op] = value
}

func (q *RangeQuery) Build() map[string]interface{} {
	return q.builder.Build()
}

func NewQueryStringQuery(query string) *QueryStringQuery {
	return &QueryStringQuery{
		builder: NewQueryBuilder(),
		query:   query,
	}
}

func (q *QueryStringQuery) Build() map[string]interface{} {
	q.builder.query["query_string"] = map[string]interface{}{
		"query": q.query,
	}
	return q.builder.Build()
}

func NewMatchAllQuery() *MatchAllQuery {
	return &MatchAllQuery{
		builder: NewQueryBuilder(),
	}
}

func (q *MatchAllQuery) Build() map[string]interface{} {
	q.builder.query["match_all"] = map[string]interface{}{}
	return q.builder.Build()
}

// NewRawStringQuery returns nil if rawQuery is not a JSON object.
func NewRawStringQuery(rawQuery string) *RawStringQuery {
	builder := NewQueryBuilder()
	if err := json.Unmarshal([]byte(rawQuery), &builder.query); err != nil {
		return nil
	}
	return &RawStringQuery{builder: builder}
}

func (q *RawStringQuery) Build() map[string]interface{} {
	return q.builder.Build()
}

func (q *QueryBuilder) Build() map[string]interface{} {
	return q.query
}
