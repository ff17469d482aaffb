//go:build speexdsp
// +build speexdsp

package speexdsp

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
#cgo pkg-config: speexdsp
#include <speex/speex_preprocess.h>
*/
import "C"

const (
	Priority = 100
)

func init() {
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

type SpeexDSP struct {
	Locker          sync.Mutex
	State           *C.SpeexPreprocessState
	FrameSizeValue  int
	SampleRateValue audio.SampleRate
}

var _ types.Preprocessor = (*SpeexDSP)(nil)

func New(
	frameSize int,
	sampleRate audio.SampleRate,
	opts types.Options,
) (*SpeexDSP, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSize)
	}
	if sampleRate == 0 || sampleRate > math.MaxInt32 {
		return nil, fmt.Errorf("sample rate must be in range [1, %d], got %d", math.MaxInt32, sampleRate)
	}
	if frameSize > math.MaxInt32 {
		return nil, fmt.Errorf("frame size is too large: %d", frameSize)
	}

	state := C.speex_preprocess_state_init(C.int(frameSize), C.int(sampleRate))
	if state == nil {
		return nil, fmt.Errorf("speex_preprocess_state_init(%d, %d) failed", frameSize, sampleRate)
	}
	s := &SpeexDSP{
		State:           state,
		FrameSizeValue:  frameSize,
		SampleRateValue: sampleRate,
	}
	if err := s.configure(opts); err != nil {
		C.speex_preprocess_state_destroy(state)
		return nil, fmt.Errorf("unable to configure the preprocessor: %w", err)
	}
	return s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SpeexDSP) ctlInt(request C.int, value int) error {
	v := C.spx_int32_t(value)
	if C.speex_preprocess_ctl(s.State, request, unsafe.Pointer(&v)) != 0 {
		return fmt.Errorf("speex_preprocess_ctl(%d, %d) failed", int(request), value)
	}
	return nil
}

func (s *SpeexDSP) configure(opts types.Options) error {
	for _, item := range []struct {
		Request C.int
		Value   int
	}{
		{C.SPEEX_PREPROCESS_SET_DENOISE, boolToInt(opts.Denoise)},
		{C.SPEEX_PREPROCESS_SET_NOISE_SUPPRESS, opts.NoiseSuppressDB},
		{C.SPEEX_PREPROCESS_SET_AGC, boolToInt(opts.AGC)},
		{C.SPEEX_PREPROCESS_SET_VAD, boolToInt(opts.VAD)},
		{C.SPEEX_PREPROCESS_SET_PROB_START, opts.VADProbStart},
		{C.SPEEX_PREPROCESS_SET_PROB_CONTINUE, opts.VADProbContinue},
		{C.SPEEX_PREPROCESS_SET_DEREVERB, boolToInt(opts.Dereverb)},
	} {
		if err := s.ctlInt(item.Request, item.Value); err != nil {
			return err
		}
	}

	if opts.AGC {
		agcLevel := C.float(opts.AGCLevel)
		if C.speex_preprocess_ctl(s.State, C.SPEEX_PREPROCESS_SET_AGC_LEVEL, unsafe.Pointer(&agcLevel)) != 0 {
			return fmt.Errorf("unable to set the AGC level to %f", opts.AGCLevel)
		}
	}
	return nil
}

func (s *SpeexDSP) Close() error {
	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.State == nil {
		return fmt.Errorf("double-free attempt")
	}
	C.speex_preprocess_state_destroy(s.State)
	s.State = nil
	return nil
}

func (s *SpeexDSP) FrameSize() int {
	return s.FrameSizeValue
}

func (s *SpeexDSP) SampleRate() audio.SampleRate {
	return s.SampleRateValue
}

func (s *SpeexDSP) Run(ctx context.Context, samples []int16) (_ret bool, _err error) {
	logger.Tracef(ctx, "Run, len:%d", len(samples))
	defer func() { logger.Tracef(ctx, "/Run, len:%d: %v %v", len(samples), _ret, _err) }()

	if len(samples) != s.FrameSizeValue {
		return false, fmt.Errorf("invalid frame length: %d != %d", len(samples), s.FrameSizeValue)
	}

	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.State == nil {
		return false, fmt.Errorf("the preprocessor is closed")
	}

	isSpeech := C.speex_preprocess_run(
		s.State,
		(*C.spx_int16_t)(unsafe.Pointer(unsafe.SliceData(samples))),
	)
	return isSpeech != 0, nil
}
