package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/micfilter/pkg/audio"
	"github.com/xaionaro-go/micfilter/pkg/framefilter"
)

var (
	errHelp         = errors.New("help requested")
	errMissingValue = errors.New("missing option value")
)

type flags struct {
	framefilter.Config
	LoggerLevel  logger.Level
	NetPprofAddr string
}

// valueFlags consume the next token as their value.
var valueFlags = map[string]struct{}{
	"-r":                      {},
	"--rate":                  {},
	"-s":                      {},
	"--samples":               {},
	"--log-level":             {},
	"--net-pprof-listen-addr": {},
}

// normalizeArgs drops the tokens pflag would interpret although they are
// unknown here: the "--" terminator and shorthand clusters like "-xs".
// Values of known flags are kept as is. It reports whether the last
// known flag lacks its value.
func normalizeArgs(args []string) ([]string, bool) {
	result := make([]string, 0, len(args))
	for idx := 0; idx < len(args); idx++ {
		arg := args[idx]
		switch {
		case arg == "--":
			continue
		case len(arg) > 2 && arg[0] == '-' && arg[1] != '-':
			continue
		}
		result = append(result, arg)
		if _, ok := valueFlags[arg]; !ok {
			continue
		}
		if idx+1 >= len(args) {
			return result, true
		}
		idx++
		result = append(result, args[idx])
	}
	return result, false
}

// parseFlags ignores unknown options and positional arguments.
func parseFlags(args []string) (flags, error) {
	result := flags{
		Config:      framefilter.DefaultConfig(),
		LoggerLevel: logger.LevelWarning,
	}

	fs := pflag.NewFlagSet(args[0], pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	fs.ParseErrorsWhitelist.UnknownFlags = true

	// numeric values are validated after parsing, so that --help wins over a malformed value
	rate := fs.StringP("rate", "r", strconv.Itoa(int(result.SampleRate)), "sample rate")
	samples := fs.StringP("samples", "s", strconv.Itoa(result.FrameSize), "frame size")
	help := fs.BoolP("help", "h", false, "show this message and exit")
	fs.Var(&result.LoggerLevel, "log-level", "Log level")
	fs.StringVar(&result.NetPprofAddr, "net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")

	normalizedArgs, isMissingValue := normalizeArgs(args[1:])
	if isMissingValue {
		return result, errMissingValue
	}

	err := fs.Parse(normalizedArgs)
	switch {
	case err != nil:
		return result, fmt.Errorf("unable to parse the arguments: %w", err)
	case *help:
		return result, errHelp
	}

	sampleRate, err := parsePositive(*rate, uint64(framefilter.MaxSampleRate))
	if err != nil {
		return result, fmt.Errorf("invalid sample rate: %w", err)
	}
	result.SampleRate = audio.SampleRate(sampleRate)

	frameSize, err := parsePositive(*samples, framefilter.MaxFrameSize)
	if err != nil {
		return result, fmt.Errorf("invalid frame size: %w", err)
	}
	result.FrameSize = int(frameSize)

	return result, nil
}

func parsePositive(s string, limit uint64) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a positive integer", s)
	}
	if v == 0 || v > limit {
		return 0, fmt.Errorf("%d is out of range [1, %d]", v, limit)
	}
	return v, nil
}

func printUsage(w io.Writer, argv0 string) {
	fmt.Fprintf(w, `
usage: %s [options]

options:
   -h           --help              show this message and exit
   -r  RATE     --rate     RATE     sample rate (default: %d)
   -s  SAMPLES  --samples  SAMPLES  frame size (default: %d)
                --log-level LEVEL   log level (default: %s)
                --net-pprof-listen-addr ADDR
                                    serve net/pprof on ADDR

`, argv0, framefilter.DefaultSampleRate, framefilter.DefaultFrameSize, logger.LevelWarning)
}
