//go:build rnnoise
// +build rnnoise

package rnnoise

import (
	"context"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/micfilter/pkg/audio"
	"github.com/xaionaro-go/micfilter/pkg/preprocess/registry"
	"github.com/xaionaro-go/micfilter/pkg/preprocess/types"
)

/*
#cgo pkg-config: rnnoise
#include <rnnoise.h>
*/
import "C"

const (
	Priority = 50

	// SampleRate is the only sample rate RNNoise models are trained for.
	SampleRate = audio.SampleRate(48_000)
)

var chunkSize int

func init() {
	chunkSize = int(C.rnnoise_get_frame_size())
	registry.RegisterFactory(Priority, Factory{})
}

type Factory struct{}

func (Factory) NewPreprocessor(
	frameSize int,
	sampleRate audio.SampleRate,
	opts types.Options,
) (types.Preprocessor, error) {
	return New(frameSize, sampleRate, opts)
}

type RNNoise struct {
	Locker         sync.Mutex
	DenoiseState   *C.DenoiseState
	FrameSizeValue int
	Options        types.Options
	Buffer         []float32
	isSpeech       bool
}

var _ types.Preprocessor = (*RNNoise)(nil)

func New(
	frameSize int,
	sampleRate audio.SampleRate,
	opts types.Options,
) (*RNNoise, error) {
	if sampleRate != SampleRate {
		return nil, fmt.Errorf("RNNoise supports only sample rate %d, got %d", SampleRate, sampleRate)
	}
	if frameSize <= 0 || frameSize%chunkSize != 0 {
		return nil, fmt.Errorf("the frame size must be a positive multiple of %d, got %d", chunkSize, frameSize)
	}
	if opts.AGC {
		return nil, fmt.Errorf("RNNoise does not support AGC")
	}
	return &RNNoise{
		DenoiseState:   C.rnnoise_create(nil),
		FrameSizeValue: frameSize,
		Options:        opts,
		Buffer:         make([]float32, frameSize),
	}, nil
}

func (s *RNNoise) Close() error {
	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.DenoiseState == nil {
		return fmt.Errorf("double-free attempt")
	}
	C.rnnoise_destroy(s.DenoiseState)
	s.DenoiseState = nil
	return nil
}

func (s *RNNoise) FrameSize() int {
	return s.FrameSizeValue
}

func (s *RNNoise) SampleRate() audio.SampleRate {
	return SampleRate
}

func (s *RNNoise) Run(ctx context.Context, samples []int16) (_ret bool, _err error) {
	logger.Tracef(ctx, "Run, len:%d", len(samples))
	defer func() { logger.Tracef(ctx, "/Run, len:%d: %v %v", len(samples), _ret, _err) }()

	if len(samples) != s.FrameSizeValue {
		return false, fmt.Errorf("invalid frame length: %d != %d", len(samples), s.FrameSizeValue)
	}

	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.DenoiseState == nil {
		return false, fmt.Errorf("the preprocessor is closed")
	}

	for idx, v := range samples {
		s.Buffer[idx] = float32(v)
	}

	var maxVADProb float64
	for offset := 0; offset < len(s.Buffer); offset += chunkSize {
		chunk := s.Buffer[offset : offset+chunkSize]
		ptr := (*C.float)(unsafe.Pointer(unsafe.SliceData(chunk)))
		vadProb := float64(C.rnnoise_process_frame(s.DenoiseState, ptr, ptr))
		maxVADProb = max(maxVADProb, vadProb)
	}

	if s.Options.Denoise {
		for idx, v := range s.Buffer {
			samples[idx] = int16(max(min(math.Round(float64(v)), math.MaxInt16), math.MinInt16))
		}
	}

	if !s.Options.VAD {
		return true, nil
	}
	threshold := s.Options.VADProbStart
	if s.isSpeech {
		threshold = s.Options.VADProbContinue
	}
	s.isSpeech = maxVADProb*100 >= float64(threshold)
	return s.isSpeech, nil
}
