package submit

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/cheggaaa/pb.v2"

	"github.com/pteich/elastic-bulk-by-scroll/bulkbyscroll"
	"github.com/pteich/elastic-bulk-by-scroll/elastic"
	"github.com/pteich/elastic-bulk-by-scroll/flags"
	"github.com/pteich/elastic-bulk-by-scroll/formats"
)

// cancelTimeout bounds the cancel request sent after an interrupt.
const cancelTimeout = 30 * time.Second

var ErrInvalidRequest = errors.New("invalid request")

type Formatter interface {
	Run(context.Context, <-chan *elastic.TaskStatus) error
}

// Run builds the operation described by conf, or reads it from conf.Infile, and starts it on
// the cluster. With conf.Wait it follows the task until it completes and cancels it when ctx
// is done first.
func Run(ctx context.Context, conf *flags.Flags, logger *zap.Logger) error {
	op, err := loadOperation(conf)
	if err != nil {
		return err
	}
	if err := checkOperation(op, logger); err != nil {
		return err
	}

	if conf.Outfile != "" {
		if err := writeOperation(conf.Outfile, op); err != nil {
			return fmt.Errorf("write request: %w", err)
		}
		logger.Info("request written", zap.String("file", conf.Outfile))
	}

	client, err := createClient(conf, logger)
	if err != nil {
		return fmt.Errorf("connect to ElasticSearch: %w", err)
	}
	defer client.Stop()

	out, closeOut, err := openOutput(conf.Statusfile)
	if err != nil {
		return err
	}
	defer closeOut()

	return execute(ctx, conf, client, op, out, logger)
}

func execute(ctx context.Context, conf *flags.Flags, client Client, op bulkbyscroll.Operation, out io.Writer, logger *zap.Logger) error {
	if conf.DryRun {
		total, err := client.Count(ctx, op.Common().Source())
		if err != nil {
			return fmt.Errorf("count documents: %w", err)
		}
		logger.Info("dry run",
			zap.String("description", op.Description()),
			zap.Int64("matches", total),
		)
		return nil
	}

	task, err := client.Submit(ctx, op)
	if err != nil {
		return fmt.Errorf("submit %s: %w", op.Kind(), err)
	}
	logger.Info("task started",
		zap.Stringer("task", task.ID),
		zap.String("action", task.Action),
		zap.String("description", task.Description()),
	)

	if !conf.Wait {
		_, err := fmt.Fprintln(out, task.ID)
		return err
	}

	interval, err := parseDuration("poll", conf.PollInterval)
	if err != nil {
		return err
	}

	bar := pb.New(0)
	bar.Start()
	defer bar.Finish()

	return follow(ctx, task, interval, newFormatter(conf.OutFormat, out, bar), logger)
}

// follow polls the status of task until it completes and passes every snapshot to output.
func follow(ctx context.Context, task *elastic.Task, interval time.Duration, output Formatter, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	// A finished task has nothing left to cancel.
	var completed atomic.Bool

	statuses := make(chan *elastic.TaskStatus)
	g.Go(func() error {
		defer close(statuses)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			status, err := task.Status(gctx)
			if err != nil {
				return fmt.Errorf("task %s: %w", task.ID, err)
			}
			if status.Completed {
				completed.Store(true)
			}

			select {
			case statuses <- status:
			case <-gctx.Done():
				return gctx.Err()
			}

			if status.Completed {
				return nil
			}

			select {
			case <-ticker.C:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	g.Go(func() error {
		return output.Run(gctx, statuses)
	})

	err := g.Wait()
	if ctx.Err() != nil && !completed.Load() {
		cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
		defer cancel()
		if cerr := task.Cancel(cancelCtx); cerr != nil {
			logger.Error("failed to cancel task", zap.Stringer("task", task.ID), zap.Error(cerr))
		} else {
			logger.Info("task canceled", zap.Stringer("task", task.ID))
		}
	}
	return err
}

func checkOperation(op bulkbyscroll.Operation, logger *zap.Logger) error {
	err := op.Validate()
	if err == nil {
		return nil
	}
	violations := bulkbyscroll.Violations(err)
	for _, msg := range violations {
		logger.Error("validation failed", zap.String("kind", op.Kind().String()), zap.String("violation", msg))
	}
	return fmt.Errorf("%w: %d validation errors", ErrInvalidRequest, len(violations))
}

func newFormatter(format string, out io.Writer, bar *pb.ProgressBar) Formatter {
	switch format {
	case flags.FormatCSV:
		return formats.CSV{Outfile: out, ProgessBar: bar}
	case flags.FormatText:
		return formats.Text{Outfile: out, ProgessBar: bar}
	default:
		return formats.JSON{Outfile: out, ProgessBar: bar}
	}
}

func loadOperation(conf *flags.Flags) (bulkbyscroll.Operation, error) {
	if conf.Infile == "" {
		return BuildOperation(conf)
	}

	f, err := os.Open(conf.Infile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	op, err := bulkbyscroll.DecodeOperation(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("read request from %s: %w", conf.Infile, err)
	}
	return op, nil
}

func writeOperation(path string, op bulkbyscroll.Operation) error {
	out, closeOut, err := openOutput(path)
	if err != nil {
		return err
	}
	defer closeOut()

	w := bufio.NewWriter(out)
	if err := bulkbyscroll.EncodeOperation(w, op); err != nil {
		return err
	}
	return w.Flush()
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}
