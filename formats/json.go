package formats

import (
	"context"
	"encoding/json"
	"io"

	"gopkg.in/cheggaaa/pb.v2"

	"github.com/pteich/elastic-bulk-by-scroll/elastic"
)

// JSON writes every status snapshot as one line of JSON.
type JSON struct {
	Outfile    io.Writer
	ProgessBar *pb.ProgressBar
}

func (j JSON) Run(ctx context.Context, statuses <-chan *elastic.TaskStatus) error {
	enc := json.NewEncoder(j.Outfile)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case status, ok := <-statuses:
			if !ok {
				return nil
			}
			if err := enc.Encode(status); err != nil {
				return err
			}
			progress(j.ProgessBar, status)
		}
	}
}
