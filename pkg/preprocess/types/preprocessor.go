package types

import (
	"context"
	"io"

	"github.com/xaionaro-go/micfilter/pkg/audio"
)

// Preprocessor is a stateful per-frame audio conditioner (noise suppression,
// gain control, voice activity detection).
//
// Run transforms exactly FrameSize() mono samples in place. The state is
// carried over between calls, so frames must be passed in stream order.
type Preprocessor interface {
	io.Closer

	FrameSize() int
	SampleRate() audio.SampleRate

	// Run returns false only if voice activity detection is enabled and
	// the frame was classified as non-speech.
	Run(ctx context.Context, samples []int16) (bool, error)
}
