package spectral

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/micfilter/pkg/preprocess/types"
)

const (
	testSampleRate = 16000
	testFrameSize  = 320
)

func rms(samples []int16) float64 {
	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func noiseFrame(rng *rand.Rand, amplitude float64) []int16 {
	frame := make([]int16, testFrameSize)
	for idx := range frame {
		frame[idx] = int16(rng.NormFloat64() * amplitude)
	}
	return frame
}

func toneFrame(frameIdx int, freq float64, amplitude float64) []int16 {
	frame := make([]int16, testFrameSize)
	for idx := range frame {
		t := float64(frameIdx*testFrameSize+idx) / testSampleRate
		frame[idx] = int16(amplitude * math.Sin(2*math.Pi*freq*t))
	}
	return frame
}

func TestNew(t *testing.T) {
	_, err := New(0, testSampleRate, types.DefaultOptions())
	require.Error(t, err)

	_, err = New(testFrameSize, 0, types.DefaultOptions())
	require.Error(t, err)

	opts := types.DefaultOptions()
	opts.NoiseSuppressDB = 3
	_, err = New(testFrameSize, testSampleRate, opts)
	require.Error(t, err)

	s, err := New(testFrameSize, testSampleRate, types.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, testFrameSize, s.FrameSize())
	require.EqualValues(t, testSampleRate, s.SampleRate())
	require.Equal(t, 512, s.fftSize)

	one, err := New(1, testSampleRate, types.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 2, one.fftSize)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	s, err := New(testFrameSize, testSampleRate, types.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.Error(t, s.Close())

	_, err = s.Run(ctx, make([]int16, testFrameSize))
	require.Error(t, err)
}

func TestRunInvalidFrameLength(t *testing.T) {
	s, err := New(testFrameSize, testSampleRate, types.DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Run(context.Background(), make([]int16, testFrameSize-1))
	require.Error(t, err)
}

func TestSilence(t *testing.T) {
	ctx := context.Background()
	s, err := New(testFrameSize, testSampleRate, types.DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	for range 3 {
		frame := make([]int16, testFrameSize)
		isSpeech, err := s.Run(ctx, frame)
		require.NoError(t, err)
		assert.True(t, isSpeech)
		assert.Equal(t, make([]int16, testFrameSize), frame)
	}
}

func TestDeterministic(t *testing.T) {
	ctx := context.Background()
	process := func() [][]int16 {
		s, err := New(testFrameSize, testSampleRate, types.DefaultOptions())
		require.NoError(t, err)
		defer s.Close()

		rng := rand.New(rand.NewSource(42))
		var result [][]int16
		for range 10 {
			frame := noiseFrame(rng, 1000)
			_, err := s.Run(ctx, frame)
			require.NoError(t, err)
			result = append(result, frame)
		}
		return result
	}
	require.Equal(t, process(), process())
}

func TestStationaryNoiseIsAttenuated(t *testing.T) {
	ctx := context.Background()
	s, err := New(testFrameSize, testSampleRate, types.DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	rng := rand.New(rand.NewSource(1))
	var inRMS, outRMS float64
	for frameIdx := range 200 {
		frame := noiseFrame(rng, 1000)
		in := rms(frame)
		_, err := s.Run(ctx, frame)
		require.NoError(t, err)
		if frameIdx >= 150 {
			inRMS += in
			outRMS += rms(frame)
		}
	}
	assert.Less(t, outRMS, inRMS*0.7)
}

func TestToneOnsetPasses(t *testing.T) {
	ctx := context.Background()
	opts := types.DefaultOptions()
	opts.VAD = true
	s, err := New(testFrameSize, testSampleRate, opts)
	require.NoError(t, err)
	defer s.Close()

	for range 10 {
		isSpeech, err := s.Run(ctx, make([]int16, testFrameSize))
		require.NoError(t, err)
		assert.False(t, isSpeech)
	}

	for frameIdx := range 5 {
		frame := toneFrame(frameIdx, 1000, 10000)
		in := rms(frame)
		isSpeech, err := s.Run(ctx, frame)
		require.NoError(t, err)
		assert.True(t, isSpeech, "frame %d", frameIdx)
		if frameIdx >= 2 {
			assert.Greater(t, rms(frame), in*0.5, "frame %d", frameIdx)
		}
	}
}

func TestAGC(t *testing.T) {
	ctx := context.Background()
	opts := types.DefaultOptions()
	opts.Denoise = false
	opts.AGC = true
	s, err := New(testFrameSize, testSampleRate, opts)
	require.NoError(t, err)
	defer s.Close()

	var frame []int16
	var in float64
	for frameIdx := range 300 {
		frame = toneFrame(frameIdx, 440, 1000)
		in = rms(frame)
		_, err := s.Run(ctx, frame)
		require.NoError(t, err)
	}
	assert.Greater(t, rms(frame), in*4)
}

func TestBypass(t *testing.T) {
	ctx := context.Background()
	opts := types.DefaultOptions()
	opts.Denoise = false
	s, err := New(testFrameSize, testSampleRate, opts)
	require.NoError(t, err)
	defer s.Close()

	rng := rand.New(rand.NewSource(7))
	frame := noiseFrame(rng, 3000)
	orig := append([]int16{}, frame...)
	_, err = s.Run(ctx, frame)
	require.NoError(t, err)
	require.Equal(t, orig, frame)
}
