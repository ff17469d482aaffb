package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/xaionaro-go/micfilter/pkg/framefilter"
	_ "github.com/xaionaro-go/micfilter/pkg/preprocess/implementations/rnnoise"
	_ "github.com/xaionaro-go/micfilter/pkg/preprocess/implementations/spectral"
	_ "github.com/xaionaro-go/micfilter/pkg/preprocess/implementations/speexdsp"
	"github.com/xaionaro-go/observability"
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// run reads raw mono S16 PCM from stdin and writes the preprocessed frames
// to stdout. The returned value is the process exit code.
func run(
	ctx context.Context,
	args []string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
) int {
	f, err := parseFlags(args)
	switch {
	case errors.Is(err, errHelp), errors.Is(err, errMissingValue):
		printUsage(stderr, args[0])
		return 0
	case err != nil:
		_, _ = io.WriteString(stderr, "\n"+err.Error()+"\n")
		printUsage(stderr, args[0])
		return 1
	}

	l := logrus.Default().WithLevel(f.LoggerLevel)
	ctx = logger.CtxWithLogger(ctx, l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if f.NetPprofAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(f.NetPprofAddr, nil)) })
	}

	filter, err := framefilter.New(ctx, f.Config)
	if err != nil {
		logger.Errorf(ctx, "unable to initialize the filter: %v", err)
		return 1
	}
	defer func() {
		if err := filter.Close(); err != nil {
			logger.Errorf(ctx, "unable to close the filter: %v", err)
		}
	}()

	stats, err := filter.Run(ctx, stdin, stdout)
	logger.Debugf(ctx, "frames:%d (speech:%d), read:%d, written:%d, dropped:%d", stats.Frames, stats.SpeechFrames, stats.BytesRead, stats.BytesWritten, stats.BytesDropped)
	if err != nil {
		logger.Errorf(ctx, "unable to filter the stream: %v", err)
		return 1
	}
	return 0
}
