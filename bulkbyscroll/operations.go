package bulkbyscroll

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/pteich/elastic-bulk-by-scroll/search"
	"github.com/pteich/elastic-bulk-by-scroll/stream"
)

// Kind tells the operations apart on the wire.
type Kind byte

const (
	KindReindex Kind = iota
	KindUpdateByQuery
	KindDeleteByQuery
)

func (k Kind) String() string {
	switch k {
	case KindReindex:
		return "reindex"
	case KindUpdateByQuery:
		return "update-by-query"
	case KindDeleteByQuery:
		return "delete-by-query"
	default:
		return fmt.Sprintf("unknown(%d)", byte(k))
	}
}

// Action is the name the cluster registers the operation's tasks under.
func (k Kind) Action() string {
	switch k {
	case KindReindex:
		return "indices:data/write/reindex"
	case KindUpdateByQuery:
		return "indices:data/write/update/byquery"
	case KindDeleteByQuery:
		return "indices:data/write/delete/byquery"
	default:
		return ""
	}
}

func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindReindex, KindUpdateByQuery, KindDeleteByQuery} {
		if s == k.String() {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown operation [%s]", ErrInvalidArgument, s)
}

// Operation is one of Reindex, UpdateByQuery or DeleteByQuery.
type Operation interface {
	Kind() Kind
	// Common returns the settings every operation shares.
	Common() *Request
	Validate() error
	Description() string

	encode(w *stream.Writer)
	decode(r *stream.Reader)
}

func newOperation(k Kind) (Operation, error) {
	switch k {
	case KindReindex:
		return &Reindex{Request: newRequest()}, nil
	case KindUpdateByQuery:
		return &UpdateByQuery{Request: newRequest()}, nil
	case KindDeleteByQuery:
		return &DeleteByQuery{Request: newRequest()}, nil
	default:
		return nil, fmt.Errorf("%w: unknown operation kind [%d]", stream.ErrMalformed, byte(k))
	}
}

type DeleteByQuery struct {
	*Request
}

func NewDeleteByQuery(src *search.Request) *DeleteByQuery {
	return &DeleteByQuery{Request: NewRequest(src)}
}

func (d *DeleteByQuery) Kind() Kind { return KindDeleteByQuery }
func (d *DeleteByQuery) Common() *Request { return d.Request }

func (d *DeleteByQuery) Description() string {
	return "delete-by-query " + d.Request.Description()
}

// Script is run against every matched document of an update-by-query.
type Script struct {
	Source string
	Lang   string
	Params json.RawMessage
}

type UpdateByQuery struct {
	*Request
	Script   *Script
	Pipeline string
}

func NewUpdateByQuery(src *search.Request) *UpdateByQuery {
	return &UpdateByQuery{Request: NewRequest(src)}
}

func (u *UpdateByQuery) Kind() Kind { return KindUpdateByQuery }
func (u *UpdateByQuery) Common() *Request { return u.Request }

func (u *UpdateByQuery) Description() string {
	return "update-by-query " + u.Request.Description()
}

func (u *UpdateByQuery) Validate() error {
	err := u.Request.Validate()
	if u.Script != nil {
		if u.Script.Source == "" {
			err = multierr.Append(err, violation("script source is missing"))
		}
		if len(u.Script.Params) > 0 && !json.Valid(u.Script.Params) {
			err = multierr.Append(err, violation("script params are not valid JSON"))
		}
	}
	return err
}

func (u *UpdateByQuery) encode(w *stream.Writer) {
	u.Request.encode(w)
	w.WriteBool(u.Script != nil)
	if u.Script != nil {
		w.WriteString(u.Script.Source)
		w.WriteOptionalString(u.Script.Lang)
		w.WriteBytes(u.Script.Params)
	}
	w.WriteOptionalString(u.Pipeline)
}

func (u *UpdateByQuery) decode(r *stream.Reader) {
	u.Request.decode(r)
	u.Script = nil
	if r.ReadBool() {
		u.Script = &Script{Source: r.ReadString()}
		u.Script.Lang = r.ReadOptionalString()
		u.Script.Params = r.ReadBytes()
	}
	u.Pipeline = r.ReadOptionalString()
}

// Destination is where a reindex writes to.
type Destination struct {
	Index string
	Type  string
	// OpType is "index" or "create", empty for the cluster default.
	OpType      string
	VersionType string
	Pipeline    string
	// Routing is "keep", "discard" or "=<value>", empty keeps the routing of the source.
	Routing string
}

type Reindex struct {
	*Request
	Destination Destination
}

func NewReindex(src *search.Request, dest string) *Reindex {
	return &Reindex{
		Request:     NewRequest(src),
		Destination: Destination{Index: dest},
	}
}

func (x *Reindex) Kind() Kind { return KindReindex }
func (x *Reindex) Common() *Request { return x.Request }

func (x *Reindex) Description() string {
	b := strings.Builder{}
	b.WriteString("reindex from ")
	b.WriteString(x.Request.Description())
	b.WriteString(" to [")
	b.WriteString(x.Destination.Index)
	b.WriteByte(']')
	if x.Destination.Type != "" {
		b.WriteString("[" + x.Destination.Type + "]")
	}
	return b.String()
}

func (x *Reindex) Validate() error {
	err := x.Request.Validate()
	if x.source != nil && len(x.source.Indices) == 0 {
		err = multierr.Append(err, violation("use _all if you really want to copy from all existing indexes"))
	}
	if x.Destination.Index == "" {
		err = multierr.Append(err, violation("index must be specified"))
	}
	if x.source != nil {
		for _, index := range x.source.Indices {
			if index == x.Destination.Index {
				err = multierr.Append(err, violation("reindex cannot write into an index its reading from [%s]", index))
				break
			}
		}
	}
	switch x.Destination.OpType {
	case "", "index", "create":
	default:
		err = multierr.Append(err, violation("op_type must be [index] or [create] but was [%s]", x.Destination.OpType))
	}
	switch routing := x.Destination.Routing; {
	case routing == "", routing == "keep", routing == "discard", strings.HasPrefix(routing, "="):
	default:
		err = multierr.Append(err, violation("routing must be unset, [keep], [discard] or [=<some new value>]"))
	}
	return err
}

func (x *Reindex) encode(w *stream.Writer) {
	x.Request.encode(w)
	w.WriteString(x.Destination.Index)
	w.WriteOptionalString(x.Destination.Type)
	w.WriteOptionalString(x.Destination.OpType)
	w.WriteOptionalString(x.Destination.VersionType)
	w.WriteOptionalString(x.Destination.Pipeline)
	w.WriteOptionalString(x.Destination.Routing)
}

func (x *Reindex) decode(r *stream.Reader) {
	x.Request.decode(r)
	x.Destination = Destination{Index: r.ReadString()}
	x.Destination.Type = r.ReadOptionalString()
	x.Destination.OpType = r.ReadOptionalString()
	x.Destination.VersionType = r.ReadOptionalString()
	x.Destination.Pipeline = r.ReadOptionalString()
	x.Destination.Routing = r.ReadOptionalString()
}
