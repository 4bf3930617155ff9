package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pteich/configstruct"
	"go.uber.org/zap"

	"github.com/pteich/elastic-bulk-by-scroll/flags"
	"github.com/pteich/elastic-bulk-by-scroll/submit"
)

var Version = "dev"

func main() {
	conf := flags.Default()

	if err := configstruct.Parse(&conf); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %s\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(conf.Trace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %s\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger = logger.With(zap.String("version", Version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := submit.Run(ctx, &conf, logger); err != nil {
		logger.Error("bulk-by-scroll failed", zap.Error(err))
		stop()
		logger.Sync()
		os.Exit(1)
	}
}

func newLogger(trace bool) (*zap.Logger, error) {
	if trace {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
