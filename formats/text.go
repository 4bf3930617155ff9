package formats

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/cheggaaa/pb.v2"

	"github.com/pteich/elastic-bulk-by-scroll/elastic"
)

// Text writes a short human readable summary per snapshot and skips snapshots that report no
// progress since the previous one.
type Text struct {
	Outfile    io.Writer
	ProgessBar *pb.ProgressBar
}

func (t Text) Run(ctx context.Context, statuses <-chan *elastic.TaskStatus) error {
	var last *elastic.TaskStatus
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case status, ok := <-statuses:
			if !ok {
				return nil
			}
			progress(t.ProgessBar, status)
			if last != nil && *last == *status {
				continue
			}
			last = status
			if _, err := fmt.Fprintln(t.Outfile, summary(status)); err != nil {
				return err
			}
		}
	}
}

func summary(s *elastic.TaskStatus) string {
	state := "running"
	if s.Completed {
		state = "completed"
	}
	line := fmt.Sprintf("%s: %d/%d processed (updated %d, created %d, deleted %d, conflicts %d, noops %d) in %d batches",
		state, s.Processed(), s.Total, s.Updated, s.Created, s.Deleted, s.VersionConflicts, s.Noops, s.Batches)
	if s.Retries.Bulk > 0 || s.Retries.Search > 0 {
		line += fmt.Sprintf(", retries bulk %d search %d", s.Retries.Bulk, s.Retries.Search)
	}
	if s.Canceled != "" {
		line += ", canceled: " + removeLBR(s.Canceled)
	}
	return line
}
