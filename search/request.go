// Package search describes which documents a job reads: the target indices and types, the query
// and its paging.
package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/pteich/elastic-bulk-by-scroll/stream"
)

const (
	// FromUnset marks an offset that was never set.
	FromUnset = -1
	// SizeUnset lets the cluster pick the page size.
	SizeUnset = -1
)

// Query is anything that renders itself into a query body.
type Query interface {
	Build() map[string]interface{}
}

type Source struct {
	Query    json.RawMessage
	From     int
	Size     int
	Version  bool
	Includes []string
}

func NewSource() *Source {
	return &Source{
		From: FromUnset,
		Size: SizeUnset,
	}
}

// SetQuery replaces the query body with the rendering of q.
func (s *Source) SetQuery(q Query) error {
	data, err := json.Marshal(q.Build())
	if err != nil {
		return fmt.Errorf("render query: %w", err)
	}
	s.Query = data
	return nil
}

// Body returns the search body as sent to the cluster. Paging is left out, it belongs to the
// scroll parameters.
func (s *Source) Body() map[string]interface{} {
	body := make(map[string]interface{})
	if len(s.Query) > 0 {
		body["query"] = s.Query
	}
	if len(s.Includes) > 0 {
		body["_source"] = s.Includes
	}
	return body
}

type Request struct {
	Indices    []string
	Types      []string
	Routing    string
	Preference string
	// Scroll is the keepalive of the scroll context, zero for a plain search.
	Scroll time.Duration
	Source *Source
}

func NewRequest(indices ...string) *Request {
	return &Request{
		Indices: indices,
		Source:  NewSource(),
	}
}

// From returns the offset of the first hit or FromUnset.
func (r *Request) From() int {
	if r.Source == nil {
		return FromUnset
	}
	return r.Source.From
}

func (r *Request) Validate() error {
	var err error
	for _, index := range r.Indices {
		if index == "" {
			err = multierr.Append(err, errors.New("index name cannot be empty"))
			break
		}
	}
	if r.Source == nil {
		return err
	}
	if r.Scroll > 0 && r.Source.Size == 0 {
		err = multierr.Append(err, errors.New("[size] cannot be [0] in a scroll context"))
	}
	if !stream.FitsInt(r.Source.From) {
		err = multierr.Append(err, fmt.Errorf("[from] must fit in 32 bits but was [%d]", r.Source.From))
	}
	if !stream.FitsInt(r.Source.Size) {
		err = multierr.Append(err, fmt.Errorf("[size] must fit in 32 bits but was [%d]", r.Source.Size))
	}
	if len(r.Source.Query) > 0 && !json.Valid(r.Source.Query) {
		err = multierr.Append(err, errors.New("query is not valid JSON"))
	}
	return err
}

func (r *Request) Encode(w *stream.Writer) {
	w.WriteStrings(r.Indices)
	w.WriteStrings(r.Types)
	w.WriteOptionalString(r.Routing)
	w.WriteOptionalString(r.Preference)
	w.WriteBool(r.Scroll > 0)
	if r.Scroll > 0 {
		w.WriteDuration(r.Scroll)
	}
	w.WriteBool(r.Source != nil)
	if r.Source != nil {
		w.WriteBytes(r.Source.Query)
		w.WriteInt(r.Source.From)
		w.WriteInt(r.Source.Size)
		w.WriteBool(r.Source.Version)
		w.WriteStrings(r.Source.Includes)
	}
}

func (r *Request) Decode(rd *stream.Reader) {
	r.Indices = rd.ReadStrings()
	r.Types = rd.ReadStrings()
	r.Routing = rd.ReadOptionalString()
	r.Preference = rd.ReadOptionalString()
	r.Scroll = 0
	if rd.ReadBool() {
		r.Scroll = rd.ReadDuration()
	}
	r.Source = nil
	if rd.ReadBool() {
		r.Source = &Source{
			Query:   rd.ReadBytes(),
			From:    int(rd.ReadVInt()),
			Size:    int(rd.ReadVInt()),
			Version: rd.ReadBool(),
		}
		r.Source.Includes = rd.ReadStrings()
	}
}
