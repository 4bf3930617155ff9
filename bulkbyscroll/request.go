// Package bulkbyscroll holds the request shared by every job that scrolls over a search and
// writes back in bulk: reindex, update-by-query and delete-by-query.
//
// A Request is built and configured by one owner, validated once before it is submitted and
// read-only afterwards. Setters never fail and never validate; Validate reports every problem at
// once.
package bulkbyscroll

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/pteich/elastic-bulk-by-scroll/search"
	"github.com/pteich/elastic-bulk-by-scroll/stream"
	"github.com/pteich/elastic-bulk-by-scroll/transport"
)

const (
	// SizeAllMatches processes every document the search matches.
	SizeAllMatches = -1

	DefaultScrollTimeout = 5 * time.Minute
	DefaultScrollSize    = 100

	// DefaultTimeout is the replication default for waiting on shard availability.
	DefaultTimeout      = time.Minute
	DefaultRetryBackoff = 50 * time.Millisecond
	DefaultMaxRetries   = 10

	ConflictsProceed = "proceed"
	ConflictsAbort   = "abort"
)

// ErrInvalidArgument is returned by setters that reject their input.
var ErrInvalidArgument = errors.New("invalid argument")

type Request struct {
	source                 *search.Request
	maxDocs                int
	abortOnVersionConflict bool
	refresh                bool
	timeout                time.Duration
	consistency            transport.WriteConsistency

	// The retry budget applies per bulk request and resets once one succeeds.
	retryBackoffInitialTime time.Duration
	maxRetries              int

	envelope transport.Envelope
}

// NewRequest wraps src and installs the search defaults a scroll-driven job depends on: a five
// minute scroll keepalive, version tracking and pages of 100 hits. The caller's query is kept.
func NewRequest(src *search.Request) *Request {
	if src == nil {
		src = search.NewRequest()
	}
	if src.Source == nil {
		src.Source = search.NewSource()
	}
	src.Scroll = DefaultScrollTimeout
	src.Source.Version = true
	src.Source.Size = DefaultScrollSize

	r := newRequest()
	r.source = src
	return r
}

func newRequest() *Request {
	return &Request{
		maxDocs:                 SizeAllMatches,
		abortOnVersionConflict:  true,
		timeout:                 DefaultTimeout,
		consistency:             transport.ConsistencyDefault,
		retryBackoffInitialTime: DefaultRetryBackoff,
		maxRetries:              DefaultMaxRetries,
	}
}

// Envelope holds the transport fields sent ahead of the request.
func (r *Request) Envelope() *transport.Envelope {
	return &r.envelope
}

// Source is the search that matches the documents to process.
func (r *Request) Source() *search.Request {
	return r.source
}

// MaxDocs is the maximum number of documents to process, SizeAllMatches for no limit.
func (r *Request) MaxDocs() int {
	return r.maxDocs
}

func (r *Request) SetMaxDocs(maxDocs int) *Request {
	r.maxDocs = maxDocs
	return r
}

// AbortOnVersionConflict reports whether a version conflict stops the job. Defaults to true.
func (r *Request) AbortOnVersionConflict() bool {
	return r.abortOnVersionConflict
}

func (r *Request) SetAbortOnVersionConflict(abort bool) *Request {
	r.abortOnVersionConflict = abort
	return r
}

// SetConflicts sets AbortOnVersionConflict from its REST name, "proceed" or "abort".
func (r *Request) SetConflicts(conflicts string) error {
	switch conflicts {
	case ConflictsProceed:
		r.SetAbortOnVersionConflict(false)
	case ConflictsAbort:
		r.SetAbortOnVersionConflict(true)
	default:
		return fmt.Errorf("%w: conflicts may only be %q or %q but was [%s]",
			ErrInvalidArgument, ConflictsProceed, ConflictsAbort, conflicts)
	}
	return nil
}

// Conflicts is the REST name of AbortOnVersionConflict.
func (r *Request) Conflicts() string {
	if r.abortOnVersionConflict {
		return ConflictsAbort
	}
	return ConflictsProceed
}

// Refresh reports whether the written indices are refreshed when the job ends.
func (r *Request) Refresh() bool {
	return r.refresh
}

func (r *Request) SetRefresh(refresh bool) *Request {
	r.refresh = refresh
	return r
}

// Timeout is how long each bulk request waits for its shards to become available.
func (r *Request) Timeout() time.Duration {
	return r.timeout
}

func (r *Request) SetTimeout(timeout time.Duration) *Request {
	r.timeout = timeout
	return r
}

func (r *Request) Consistency() transport.WriteConsistency {
	return r.consistency
}

func (r *Request) SetConsistency(consistency transport.WriteConsistency) *Request {
	r.consistency = consistency
	return r
}

// RetryBackoffInitialTime is the delay before the first retry of a rejected bulk request.
func (r *Request) RetryBackoffInitialTime() time.Duration {
	return r.retryBackoffInitialTime
}

func (r *Request) SetRetryBackoffInitialTime(d time.Duration) *Request {
	r.retryBackoffInitialTime = d
	return r
}

// MaxRetries is the number of retries for a rejected bulk request. Unlimited retries are not
// possible.
func (r *Request) MaxRetries() int {
	return r.maxRetries
}

func (r *Request) SetMaxRetries(maxRetries int) *Request {
	r.maxRetries = maxRetries
	return r
}

// Backoff is what an executor needs to retry rejected bulk requests. The growth of the delay
// after the first retry is up to the executor.
type Backoff struct {
	InitialDelay time.Duration
	MaxRetries   int
}

func (r *Request) BackoffPolicy() Backoff {
	return Backoff{
		InitialDelay: r.retryBackoffInitialTime,
		MaxRetries:   r.maxRetries,
	}
}

// ValidationError is a single problem found by Validate.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func violation(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Validate returns every problem with the request combined into one error, nil if there is
// none. Use Violations to list them.
func (r *Request) Validate() error {
	if r.source == nil {
		return violation("search source is missing")
	}
	err := r.source.Validate()
	if r.source.From() != search.FromUnset {
		err = multierr.Append(err, violation("from is not supported in this context"))
	}
	if r.maxRetries < 0 {
		err = multierr.Append(err, violation("retries cannot be negative"))
	} else if !stream.FitsInt(r.maxRetries) {
		err = multierr.Append(err, violation("retries must fit in 32 bits but was [%d]", r.maxRetries))
	}
	if !(r.maxDocs == SizeAllMatches || r.maxDocs > 0) {
		err = multierr.Append(err, violation(
			"size should be greater than 0 if the request is limited to some number of documents or -1 if it isn't but it was [%d]",
			r.maxDocs))
	}
	if r.maxDocs > 0 && !stream.FitsInt(r.maxDocs) {
		err = multierr.Append(err, violation("size must fit in 32 bits but was [%d]", r.maxDocs))
	}
	return err
}

// Violations flattens an error returned by Validate into its messages.
func Violations(err error) []string {
	errs := multierr.Errors(err)
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return msgs
}
