package preprocess

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/micfilter/pkg/audio"
)

// Dummy passes frames through untouched.
type Dummy struct {
	FrameSizeValue  int
	SampleRateValue audio.SampleRate
	FramesCount     uint64
	IsClosed        bool
}

var _ Preprocessor = (*Dummy)(nil)

func NewDummy(
	frameSize int,
	sampleRate audio.SampleRate,
) *Dummy {
	return &Dummy{
		FrameSizeValue:  frameSize,
		SampleRateValue: sampleRate,
	}
}

func (p *Dummy) Close() error {
	if p.IsClosed {
		return fmt.Errorf("double-free attempt")
	}
	p.IsClosed = true
	return nil
}

func (p *Dummy) FrameSize() int {
	return p.FrameSizeValue
}

func (p *Dummy) SampleRate() audio.SampleRate {
	return p.SampleRateValue
}

func (p *Dummy) Run(_ context.Context, samples []int16) (bool, error) {
	if p.IsClosed {
		return false, fmt.Errorf("the preprocessor is closed")
	}
	if len(samples) != p.FrameSizeValue {
		return false, fmt.Errorf("invalid frame length: %d != %d", len(samples), p.FrameSizeValue)
	}
	p.FramesCount++
	return true, nil
}
