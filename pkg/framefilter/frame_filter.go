package framefilter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/micfilter/pkg/audio"
	"github.com/xaionaro-go/micfilter/pkg/preprocess"
)

const (
	DefaultSampleRate = audio.SampleRate(16000)
	DefaultFrameSize  = 320 // 20ms at 16kHz

	// MaxSampleRate is the highest rate the C engines can represent.
	MaxSampleRate = audio.SampleRate(math.MaxInt32)

	// MaxFrameSize bounds the per-frame buffers of the engines (about 21s at 48kHz).
	MaxFrameSize = 1 << 20
)

type Config struct {
	SampleRate audio.SampleRate
	FrameSize  int
}

func DefaultConfig() Config {
	return Config{
		SampleRate: DefaultSampleRate,
		FrameSize:  DefaultFrameSize,
	}
}

func (cfg Config) Validate() error {
	if cfg.SampleRate == 0 || cfg.SampleRate > MaxSampleRate {
		return fmt.Errorf("sample rate must be in range [1, %d], got %d", MaxSampleRate, cfg.SampleRate)
	}
	if cfg.FrameSize <= 0 || cfg.FrameSize > MaxFrameSize {
		return fmt.Errorf("frame size must be in range [1, %d], got %d", MaxFrameSize, cfg.FrameSize)
	}
	return nil
}

type Stats struct {
	Frames       uint64
	SpeechFrames uint64
	BytesRead    uint64
	BytesWritten uint64
	BytesDropped uint64
}

type flusher interface {
	Flush() error
}

// Filter runs fixed-size frames of mono host-endian S16 PCM through
// a preprocessor. It owns the preprocessor and releases it on Close.
type Filter struct {
	Config
	Preprocessor preprocess.Preprocessor

	samples  []int16
	frameBuf []byte
}

// New initializes the best available preprocessor for the configuration.
func New(
	ctx context.Context,
	cfg Config,
) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	p, err := preprocess.NewAuto(ctx, cfg.FrameSize, cfg.SampleRate, preprocess.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a preprocessor: %w", err)
	}
	logger.Debugf(ctx, "preprocessor: %T; format: %s; frame: %d samples (%v)", p, audio.PCMFormatS16NE(), cfg.FrameSize, cfg.SampleRate.Duration(uint64(cfg.FrameSize)))
	return NewWithPreprocessor(cfg, p)
}

// NewWithPreprocessor takes the ownership of the given preprocessor.
func NewWithPreprocessor(
	cfg Config,
	p preprocess.Preprocessor,
) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("preprocessor is mandatory")
	}
	if p.FrameSize() != cfg.FrameSize {
		return nil, fmt.Errorf("the preprocessor frame size does not match the config: %d != %d", p.FrameSize(), cfg.FrameSize)
	}
	return &Filter{
		Config:       cfg,
		Preprocessor: p,
		samples:      make([]int16, cfg.FrameSize),
		frameBuf:     make([]byte, cfg.FrameSize*audio.BytesPerSampleS16),
	}, nil
}

func (f *Filter) Close() error {
	if f.Preprocessor == nil {
		return fmt.Errorf("double-close attempt")
	}
	var mErr *multierror.Error
	if err := f.Preprocessor.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the preprocessor: %w", err))
	}
	f.Preprocessor = nil
	return mErr.ErrorOrNil()
}

// Run processes frames from input until it cannot read a full frame anymore.
// A partial trailing frame is dropped. Each frame is flushed right after it
// is written if output implements Flush() error.
func (f *Filter) Run(
	ctx context.Context,
	input io.Reader,
	output io.Writer,
) (_ret Stats, _err error) {
	logger.Tracef(ctx, "Run")
	defer func() { logger.Tracef(ctx, "/Run: %#+v %v", _ret, _err) }()

	if f.Preprocessor == nil {
		return Stats{}, fmt.Errorf("the filter is closed")
	}

	rc := datacounter.NewReaderCounter(input)
	wc := datacounter.NewWriterCounter(output)
	flush := func() error { return nil }
	if fl, ok := output.(flusher); ok {
		flush = fl.Flush
	}

	var stats Stats
	defer func() {
		stats.BytesRead = rc.Count()
		stats.BytesWritten = wc.Count()
		stats.BytesDropped = stats.BytesRead - stats.Frames*uint64(len(f.frameBuf))
		_ret = stats
	}()

	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		n, err := io.ReadFull(rc, f.frameBuf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			logger.Debugf(ctx, "end of input after %d frames, dropping %d trailing bytes", stats.Frames, n)
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("unable to read frame #%d: %w", stats.Frames, err)
		}

		isSpeech, err := ProcessFrame(ctx, f.Preprocessor, f.samples, f.frameBuf)
		if err != nil {
			return stats, fmt.Errorf("unable to process frame #%d: %w", stats.Frames, err)
		}

		if _, err := wc.Write(f.frameBuf); err != nil {
			return stats, fmt.Errorf("unable to write frame #%d: %w", stats.Frames, err)
		}
		if err := flush(); err != nil {
			return stats, fmt.Errorf("unable to flush frame #%d: %w", stats.Frames, err)
		}

		stats.Frames++
		if isSpeech {
			stats.SpeechFrames++
		}
	}
}

// ProcessFrame runs the S16 frame in place through the preprocessor,
// using samples as the scratch buffer.
func ProcessFrame(
	ctx context.Context,
	p preprocess.Preprocessor,
	samples []int16,
	frame []byte,
) (bool, error) {
	if err := audio.DecodeS16(samples, frame); err != nil {
		return false, fmt.Errorf("unable to decode: %w", err)
	}
	isSpeech, err := p.Run(ctx, samples)
	if err != nil {
		return false, fmt.Errorf("unable to preprocess: %w", err)
	}
	if err := audio.EncodeS16(frame, samples); err != nil {
		return false, fmt.Errorf("unable to encode: %w", err)
	}
	return isSpeech, nil
}
