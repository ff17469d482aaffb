// Package spectral implements a pure-Go frame preprocessor based on
// spectral subtraction.
//
// Each frame is zero-padded to a power of two and transformed to the
// frequency domain. The noise power of every bin is tracked by a leaky
// minimum follower over a Hann-windowed analysis spectrum, and the bins are
// scaled by a Wiener-like gain which never drops below the configured
// suppression level. The gains are smoothed across frames, so the output
// stays continuous between consecutive frames.
//
// Automatic gain control and voice activity detection are supported.
// Dereverberation is not, and Options.Dereverb is ignored.
package spectral

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/brettbuddin/fourier"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/mjibson/go-dsp/window"
	"github.com/xaionaro-go/micfilter/pkg/audio"
	"github.com/xaionaro-go/micfilter/pkg/preprocess/registry"
	"github.com/xaionaro-go/micfilter/pkg/preprocess/types"
)

const (
	Priority = 10
)

const (
	// powerSmoothing is the weight of the previous frame in the smoothed power spectrum.
	powerSmoothing = 0.7

	// noiseLeak is how fast the noise floor estimate rises towards the current power.
	noiseLeak = 0.01

	// overSubtraction scales the noise estimate before subtracting it.
	overSubtraction = 2.0

	gainSmoothing = 0.5

	vadLowFreq  = 300
	vadHighFreq = 3400

	agcMinRMS      = 50
	agcMinGain     = 0.05
	agcMaxGain     = 30
	agcAttackRate  = 0.5
	agcReleaseRate = 0.02

	epsilon = 1e-9
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

type Spectral struct {
	Locker          sync.Mutex
	FrameSizeValue  int
	SampleRateValue audio.SampleRate
	Options         types.Options

	isClosed   bool
	frameCount uint64
	fftSize    int
	gainFloor  float64
	vadBinLow  int
	vadBinHigh int

	window   []float64
	analysis []complex128
	spectrum []complex128
	power    []float64
	noise    []float64
	gain     []float64
	output   []float64

	agcGain  float64
	isSpeech bool
}

var _ types.Preprocessor = (*Spectral)(nil)

func New(
	frameSize int,
	sampleRate audio.SampleRate,
	opts types.Options,
) (*Spectral, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSize)
	}
	if sampleRate == 0 {
		return nil, fmt.Errorf("sample rate must be positive")
	}
	if opts.NoiseSuppressDB > 0 {
		return nil, fmt.Errorf("noise suppression level must not be positive, got %d dB", opts.NoiseSuppressDB)
	}

	fftSize := nextPowerOfTwo(frameSize)
	bins := fftSize/2 + 1
	binWidth := float64(sampleRate) / float64(fftSize)

	s := &Spectral{
		FrameSizeValue:  frameSize,
		SampleRateValue: sampleRate,
		Options:         opts,
		fftSize:         fftSize,
		gainFloor:       math.Pow(10, float64(opts.NoiseSuppressDB)/20),
		vadBinLow:       min(bins-1, int(math.Ceil(vadLowFreq/binWidth))),
		vadBinHigh:      min(bins-1, int(vadHighFreq/binWidth)),
		window:          hannWindow(frameSize),
		analysis:        make([]complex128, fftSize),
		spectrum:        make([]complex128, fftSize),
		power:           make([]float64, bins),
		noise:           make([]float64, bins),
		gain:            make([]float64, bins),
		output:          make([]float64, frameSize),
		agcGain:         1,
	}
	for idx := range s.gain {
		s.gain[idx] = 1
	}
	return s, nil
}

func hannWindow(size int) []float64 {
	if size < 2 {
		return []float64{1}
	}
	return window.Hann(size)
}

func nextPowerOfTwo(n int) int {
	p := 2
	for p < n {
		p *= 2
	}
	return p
}

func (s *Spectral) Close() error {
	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.isClosed {
		return fmt.Errorf("double-free attempt")
	}
	s.isClosed = true
	return nil
}

func (s *Spectral) FrameSize() int {
	return s.FrameSizeValue
}

func (s *Spectral) SampleRate() audio.SampleRate {
	return s.SampleRateValue
}

func (s *Spectral) Run(ctx context.Context, samples []int16) (_ret bool, _err error) {
	logger.Tracef(ctx, "Run, len:%d", len(samples))
	defer func() { logger.Tracef(ctx, "/Run, len:%d: %v %v", len(samples), _ret, _err) }()

	if len(samples) != s.FrameSizeValue {
		return false, fmt.Errorf("invalid frame length: %d != %d", len(samples), s.FrameSizeValue)
	}

	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.isClosed {
		return false, fmt.Errorf("the preprocessor is closed")
	}

	if err := s.analyze(samples); err != nil {
		return false, err
	}

	for idx, v := range samples {
		s.output[idx] = float64(v)
	}
	if s.Options.Denoise {
		if err := s.denoise(); err != nil {
			return false, err
		}
	}

	isSpeech := s.detectVoice()
	if s.Options.AGC {
		s.applyAGC(isSpeech || !s.Options.VAD)
	}

	for idx, v := range s.output {
		samples[idx] = toInt16(v)
	}
	s.frameCount++

	if !s.Options.VAD {
		return true, nil
	}
	return isSpeech, nil
}

// analyze updates the smoothed power spectrum and the noise estimate.
func (s *Spectral) analyze(samples []int16) error {
	for idx := range s.analysis {
		if idx < len(samples) {
			s.analysis[idx] = complex(float64(samples[idx])*s.window[idx], 0)
		} else {
			s.analysis[idx] = 0
		}
	}
	if err := fourier.Forward(s.analysis); err != nil {
		return fmt.Errorf("unable to transform the analysis frame: %w", err)
	}

	for k := range s.power {
		p := real(s.analysis[k])*real(s.analysis[k]) + imag(s.analysis[k])*imag(s.analysis[k])
		if s.frameCount == 0 {
			s.power[k] = p
			s.noise[k] = p
			continue
		}
		s.power[k] = powerSmoothing*s.power[k] + (1-powerSmoothing)*p
		if s.power[k] < s.noise[k] {
			s.noise[k] = s.power[k]
		} else {
			s.noise[k] += noiseLeak * (s.power[k] - s.noise[k])
		}
	}
	return nil
}

func (s *Spectral) denoise() error {
	for idx := range s.spectrum {
		if idx < len(s.output) {
			s.spectrum[idx] = complex(s.output[idx], 0)
		} else {
			s.spectrum[idx] = 0
		}
	}
	if err := fourier.Forward(s.spectrum); err != nil {
		return fmt.Errorf("unable to transform the frame: %w", err)
	}

	for k := range s.gain {
		g := 1 - overSubtraction*s.noise[k]/(s.power[k]+epsilon)
		g = max(g, s.gainFloor)
		s.gain[k] = gainSmoothing*s.gain[k] + (1-gainSmoothing)*g
	}

	n := s.fftSize
	for k := range s.spectrum {
		bin := k
		if k > n/2 {
			bin = n - k
		}
		s.spectrum[k] *= complex(s.gain[bin], 0)
	}

	// the inverse transform is computed as conj(FFT(conj(X)))/N
	for k, v := range s.spectrum {
		s.spectrum[k] = cmplx.Conj(v)
	}
	if err := fourier.Forward(s.spectrum); err != nil {
		return fmt.Errorf("unable to transform the frame back: %w", err)
	}
	for idx := range s.output {
		s.output[idx] = real(s.spectrum[idx]) / float64(n)
	}
	return nil
}

// detectVoice estimates the speech probability from the share of the
// voice-band power standing above the noise floor.
func (s *Spectral) detectVoice() bool {
	var sumPower, sumNoise float64
	for k := s.vadBinLow; k <= s.vadBinHigh; k++ {
		sumPower += s.power[k]
		sumNoise += s.noise[k]
	}

	var prob float64
	if sumPower > epsilon {
		prob = 100 * (1 - overSubtraction*sumNoise/sumPower)
		prob = min(max(prob, 0), 100)
	}

	threshold := float64(s.Options.VADProbStart)
	if s.isSpeech {
		threshold = float64(s.Options.VADProbContinue)
	}
	s.isSpeech = sumPower > epsilon && prob >= threshold
	return s.isSpeech
}

func (s *Spectral) applyAGC(adapt bool) {
	if adapt {
		var sum float64
		for _, v := range s.output {
			sum += v * v
		}
		rms := math.Sqrt(sum / float64(len(s.output)))
		if rms > agcMinRMS {
			target := float64(s.Options.AGCLevel) / rms
			target = min(max(target, agcMinGain), agcMaxGain)
			if target < s.agcGain {
				s.agcGain += agcAttackRate * (target - s.agcGain)
			} else {
				s.agcGain += agcReleaseRate * (target - s.agcGain)
			}
		}
	}
	for idx := range s.output {
		s.output[idx] *= s.agcGain
	}
}

func toInt16(v float64) int16 {
	v = math.Round(v)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
