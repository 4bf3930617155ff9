package formats

import (
	"context"
	"encoding/csv"
	"io"
	"regexp"
	"strconv"

	"gopkg.in/cheggaaa/pb.v2"

	"github.com/pteich/elastic-bulk-by-scroll/elastic"
)

var csvHeader = []string{
	"completed", "total", "updated", "created", "deleted", "batches",
	"version_conflicts", "noops", "bulk_retries", "search_retries", "canceled",
}

// CSV writes one row per status snapshot below a header row.
type CSV struct {
	Outfile    io.Writer
	ProgessBar *pb.ProgressBar
}

func (c CSV) Run(ctx context.Context, statuses <-chan *elastic.TaskStatus) error {
	w := csv.NewWriter(c.Outfile)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	w.Flush()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case status, ok := <-statuses:
			if !ok {
				return w.Error()
			}
			if err := w.Write(csvRow(status)); err != nil {
				return err
			}
			w.Flush()
			progress(c.ProgessBar, status)
		}
	}
}

func csvRow(s *elastic.TaskStatus) []string {
	return []string{
		strconv.FormatBool(s.Completed),
		strconv.FormatInt(s.Total, 10),
		strconv.FormatInt(s.Updated, 10),
		strconv.FormatInt(s.Created, 10),
		strconv.FormatInt(s.Deleted, 10),
		strconv.FormatInt(s.Batches, 10),
		strconv.FormatInt(s.VersionConflicts, 10),
		strconv.FormatInt(s.Noops, 10),
		strconv.FormatInt(s.Retries.Bulk, 10),
		strconv.FormatInt(s.Retries.Search, 10),
		removeLBR(s.Canceled),
	}
}

// progress moves bar to the state reported by s. bar may be nil.
func progress(bar *pb.ProgressBar, s *elastic.TaskStatus) {
	if bar == nil {
		return
	}
	bar.SetTotal(s.Total)
	bar.SetCurrent(s.Processed())
}

var lineBreaks = regexp.MustCompile(`\x{000D}\x{000A}|[\x{000A}\x{000B}\x{000C}\x{000D}\x{0085}\x{2028}\x{2029}]`)

func removeLBR(text string) string {
	return lineBreaks.ReplaceAllString(text, ``)
}
