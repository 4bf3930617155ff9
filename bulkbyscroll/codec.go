package bulkbyscroll

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pteich/elastic-bulk-by-scroll/search"
	"github.com/pteich/elastic-bulk-by-scroll/stream"
	"github.com/pteich/elastic-bulk-by-scroll/transport"
)

// The field order below is the wire contract between both ends and carries no version tag, so
// sender and receiver must run the same layout.
func (r *Request) encode(w *stream.Writer) {
	r.envelope.Encode(w)
	r.source.Encode(w)
	w.WriteBool(r.abortOnVersionConflict)
	w.WriteInt(r.maxDocs)
	w.WriteBool(r.refresh)
	w.WriteDuration(r.timeout)
	w.WriteByte(r.consistency.ID())
	w.WriteDuration(r.retryBackoffInitialTime)
	w.WriteInt(r.maxRetries)
}

func (r *Request) decode(rd *stream.Reader) {
	r.envelope.Decode(rd)
	r.source = &search.Request{}
	r.source.Decode(rd)
	r.abortOnVersionConflict = rd.ReadBool()
	r.maxDocs = int(rd.ReadVInt())
	r.refresh = rd.ReadBool()
	r.timeout = rd.ReadDuration()
	if id, err := rd.ReadByte(); err == nil {
		c, err := transport.ConsistencyFromID(id)
		if err != nil {
			rd.Fail("read consistency", fmt.Errorf("%w: %s", stream.ErrMalformed, err))
		}
		r.consistency = c
	}
	r.retryBackoffInitialTime = rd.ReadDuration()
	r.maxRetries = int(rd.ReadVInt())
}

// EncodeRequest writes r to w.
func EncodeRequest(w io.Writer, r *Request) error {
	if r.source == nil {
		return fmt.Errorf("encode request: search source is missing")
	}
	sw := stream.NewWriter(w)
	r.encode(sw)
	return sw.Err()
}

// DecodeRequest reads a request written by EncodeRequest. On error nothing is returned.
func DecodeRequest(rd io.Reader) (*Request, error) {
	r := newRequest()
	sr := stream.NewReader(rd)
	r.decode(sr)
	if err := sr.Err(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Request) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeRequest(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Request) UnmarshalBinary(data []byte) error {
	rd := bytes.NewReader(data)
	decoded, err := DecodeRequest(rd)
	if err != nil {
		return err
	}
	if rd.Len() > 0 {
		return &stream.CodecError{Op: "unmarshal request", Err: fmt.Errorf("%w: %d trailing bytes", stream.ErrMalformed, rd.Len())}
	}
	*r = *decoded
	return nil
}

// EncodeOperation writes the kind of op followed by its fields.
func EncodeOperation(w io.Writer, op Operation) error {
	if op.Common() == nil || op.Common().source == nil {
		return fmt.Errorf("encode %s: search source is missing", op.Kind())
	}
	sw := stream.NewWriter(w)
	sw.WriteByte(byte(op.Kind()))
	op.encode(sw)
	return sw.Err()
}

// DecodeOperation reads an operation written by EncodeOperation.
func DecodeOperation(rd io.Reader) (Operation, error) {
	sr := stream.NewReader(rd)
	k, err := sr.ReadByte()
	if err != nil {
		return nil, err
	}
	op, err := newOperation(Kind(k))
	if err != nil {
		return nil, &stream.CodecError{Op: "read operation kind", Err: err}
	}
	op.decode(sr)
	if err := sr.Err(); err != nil {
		return nil, err
	}
	return op, nil
}
