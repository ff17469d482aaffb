package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/datacounter"
)

type runResult struct {
	ExitCode  int
	Stdout    []byte
	Stderr    string
	ReadBytes uint64
	ReadCalls int
}

type readCallCounter struct {
	io.Reader
	Calls int
}

func (r *readCallCounter) Read(p []byte) (int, error) {
	r.Calls++
	return r.Reader.Read(p)
}

func runWith(t *testing.T, input []byte, args ...string) runResult {
	t.Helper()
	rc := datacounter.NewReaderCounter(bytes.NewReader(input))
	in := &readCallCounter{Reader: rc}
	var stdout, stderr bytes.Buffer
	exitCode := run(context.Background(), append([]string{"micfilter"}, args...), in, &stdout, &stderr)
	return runResult{
		ExitCode:  exitCode,
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.String(),
		ReadBytes: rc.Count(),
		ReadCalls: in.Calls,
	}
}

func TestRunHelp(t *testing.T) {
	for _, args := range [][]string{
		{"-h"},
		{"--help"},
		{"-r", "8000", "--help"},
		{"-r", "abc", "-h"},
		{"--", "-h"},
	} {
		t.Run(args[len(args)-1], func(t *testing.T) {
			r := runWith(t, make([]byte, 640), args...)
			assert.Equal(t, 0, r.ExitCode)
			assert.Contains(t, r.Stderr, "usage: micfilter [options]")
			assert.Contains(t, r.Stderr, "--samples  SAMPLES  frame size (default: 320)")
			assert.Empty(t, r.Stdout)
			assert.Zero(t, r.ReadCalls)
		})
	}
}

func TestRunMissingValue(t *testing.T) {
	for _, args := range [][]string{
		{"--rate"},
		{"-r"},
		{"--samples"},
		{"-r", "8000", "-s"},
	} {
		t.Run(args[len(args)-1], func(t *testing.T) {
			r := runWith(t, make([]byte, 640), args...)
			assert.Equal(t, 0, r.ExitCode)
			assert.Contains(t, r.Stderr, "usage:")
			assert.Empty(t, r.Stdout)
			assert.Zero(t, r.ReadCalls)
		})
	}
}

func TestRunInvalidValue(t *testing.T) {
	for _, args := range [][]string{
		{"-r", "abc"},
		{"--samples", "0"},
		{"-s", "-5"},
		{"--rate=1.5"},
		{"-s", "1048577"},
		{"-r", "2147483648"},
	} {
		t.Run(args[0], func(t *testing.T) {
			r := runWith(t, make([]byte, 640), args...)
			assert.Equal(t, 1, r.ExitCode)
			assert.Contains(t, r.Stderr, "usage:")
			assert.Empty(t, r.Stdout)
			assert.Zero(t, r.ReadCalls)
		})
	}
}

func TestRunFrames(t *testing.T) {
	for _, tc := range []struct {
		Name        string
		Args        []string
		InputBytes  int
		OutputBytes int
	}{
		{Name: "silence_one_frame", InputBytes: 640, OutputBytes: 640},
		{Name: "two_frames", InputBytes: 1280, OutputBytes: 1280},
		{Name: "trailing_partial_frame", InputBytes: 700, OutputBytes: 640},
		{Name: "empty", InputBytes: 0, OutputBytes: 0},
		{Name: "custom_frame", Args: []string{"-r", "8000", "-s", "160"}, InputBytes: 700, OutputBytes: 640},
		{Name: "long_forms", Args: []string{"--rate=48000", "--samples", "480"}, InputBytes: 2000, OutputBytes: 1920},
		{Name: "unknown_options", Args: []string{"--unknown", "-x", "positional"}, InputBytes: 1280, OutputBytes: 1280},
		{Name: "double_dash_is_ignored", Args: []string{"--", "-s", "160"}, InputBytes: 400, OutputBytes: 320},
		{Name: "shorthand_cluster_is_ignored", Args: []string{"-xs", "160"}, InputBytes: 400, OutputBytes: 0},
		{Name: "help_cluster_is_ignored", Args: []string{"-hr"}, InputBytes: 640, OutputBytes: 640},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			r := runWith(t, make([]byte, tc.InputBytes), tc.Args...)
			require.Equal(t, 0, r.ExitCode, r.Stderr)
			require.Len(t, r.Stdout, tc.OutputBytes)
			require.Equal(t, uint64(tc.InputBytes), r.ReadBytes)
		})
	}
}
