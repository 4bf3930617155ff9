// Package stream implements the binary primitives used to move requests between processes.
// Both Writer and Reader keep the first error they hit and turn every later call into a no-op,
// so callers encode or decode a whole request and check Err once at the end.
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// MaxLength caps any length prefix written or accepted.
const MaxLength = 64 << 20

var (
	ErrTruncated  = errors.New("truncated input")
	ErrMalformed  = errors.New("malformed input")
	ErrOutOfRange = errors.New("value out of range")
)

// CodecError reports a failed encode or decode. The whole operation is lost, there is no partial
// result.
type CodecError struct {
	Op  string
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("stream: %s: %s", e.Op, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

type Writer struct {
	w   io.Writer
	buf [binary.MaxVarintLen64]byte
	err error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) fail(op string, err error) {
	if w.err == nil {
		w.err = &CodecError{Op: op, Err: err}
	}
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
}

func (w *Writer) WriteByte(b byte) error {
	w.buf[0] = b
	w.write(w.buf[:1])
	return w.err
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteByte(1)
		return
	}
	w.WriteByte(0)
}

// WriteVInt writes v in 7 bit groups, lowest first. Negative values are written as their
// unsigned 32 bit pattern and always take five bytes.
func (w *Writer) WriteVInt(v int32) {
	u := uint32(v)
	n := 0
	for u >= 0x80 {
		w.buf[n] = byte(u) | 0x80
		u >>= 7
		n++
	}
	w.buf[n] = byte(u)
	w.write(w.buf[:n+1])
}

// FitsInt reports whether v can be written with WriteInt.
func FitsInt(v int) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}

// WriteInt writes v as a vint. Values outside the 32 bit range fail the writer.
func (w *Writer) WriteInt(v int) {
	if !FitsInt(v) {
		w.fail("write int", fmt.Errorf("%w: [%d] does not fit in 32 bits", ErrOutOfRange, v))
		return
	}
	w.WriteVInt(int32(v))
}

func (w *Writer) writeLength(op string, n int) bool {
	if n > MaxLength {
		w.fail(op, fmt.Errorf("%w: length [%d] exceeds [%d]", ErrOutOfRange, n, MaxLength))
		return false
	}
	w.WriteVInt(int32(n))
	return w.err == nil
}

func (w *Writer) WriteLong(v int64) {
	binary.BigEndian.PutUint64(w.buf[:8], uint64(v))
	w.write(w.buf[:8])
}

// WriteDuration writes d as a long number of nanoseconds.
func (w *Writer) WriteDuration(d time.Duration) {
	w.WriteLong(int64(d))
}

func (w *Writer) WriteBytes(p []byte) {
	if w.writeLength("write bytes", len(p)) {
		w.write(p)
	}
}

func (w *Writer) WriteString(s string) {
	w.WriteBytes([]byte(s))
}

func (w *Writer) WriteStrings(s []string) {
	if !w.writeLength("write strings", len(s)) {
		return
	}
	for _, v := range s {
		w.WriteString(v)
	}
}

// WriteOptionalString writes a presence flag followed by s when s is not empty.
func (w *Writer) WriteOptionalString(s string) {
	w.WriteBool(s != "")
	if s != "" {
		w.WriteString(s)
	}
}

type Reader struct {
	r   io.Reader
	buf [8]byte
	err error
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (r *Reader) Err() error {
	return r.err
}

// Fail records err unless an earlier error is already set. Decoders use it for semantic errors
// such as unknown enum ids.
func (r *Reader) Fail(op string, err error) {
	if r.err == nil {
		r.err = &CodecError{Op: op, Err: err}
	}
}

func (r *Reader) read(op string, p []byte) bool {
	if r.err != nil {
		return false
	}
	if _, err := io.ReadFull(r.r, p); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrTruncated
		}
		r.Fail(op, err)
		return false
	}
	return true
}

func (r *Reader) ReadByte() (byte, error) {
	if !r.read("read byte", r.buf[:1]) {
		return 0, r.err
	}
	return r.buf[0], nil
}

func (r *Reader) ReadBool() bool {
	b, err := r.ReadByte()
	if err != nil {
		return false
	}
	switch b {
	case 0:
		return false
	case 1:
		return true
	default:
		r.Fail("read bool", fmt.Errorf("%w: unexpected byte [%d]", ErrMalformed, b))
		return false
	}
}

func (r *Reader) ReadVInt() int32 {
	var u uint32
	for shift := 0; shift < 35; shift += 7 {
		b, err := r.ReadByte()
		if err != nil {
			return 0
		}
		u |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return int32(u)
		}
	}
	r.Fail("read vint", fmt.Errorf("%w: vint longer than five bytes", ErrMalformed))
	return 0
}

func (r *Reader) ReadLong() int64 {
	if !r.read("read long", r.buf[:8]) {
		return 0
	}
	return int64(binary.BigEndian.Uint64(r.buf[:8]))
}

func (r *Reader) ReadDuration() time.Duration {
	return time.Duration(r.ReadLong())
}

func (r *Reader) readLength(op string) int {
	n := r.ReadVInt()
	if r.err != nil {
		return 0
	}
	if n < 0 || n > MaxLength {
		r.Fail(op, fmt.Errorf("%w: length [%d] out of range", ErrMalformed, n))
		return 0
	}
	return int(n)
}

// ReadBytes returns nil for an empty value.
func (r *Reader) ReadBytes() []byte {
	n := r.readLength("read bytes")
	if n == 0 {
		return nil
	}
	p := make([]byte, n)
	if !r.read("read bytes", p) {
		return nil
	}
	return p
}

func (r *Reader) ReadString() string {
	return string(r.ReadBytes())
}

// ReadStrings returns nil for an empty array.
func (r *Reader) ReadStrings() []string {
	n := r.readLength("read strings")
	if n == 0 {
		return nil
	}
	s := make([]string, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		s = append(s, r.ReadString())
	}
	if r.err != nil {
		return nil
	}
	return s
}

func (r *Reader) ReadOptionalString() string {
	if !r.ReadBool() {
		return ""
	}
	return r.ReadString()
}
