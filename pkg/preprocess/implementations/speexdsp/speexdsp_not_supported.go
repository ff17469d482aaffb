//go:build !speexdsp
// +build !speexdsp

package speexdsp

import (
	"fmt"

	"github.com/xaionaro-go/micfilter/pkg/audio"
	"github.com/xaionaro-go/micfilter/pkg/preprocess"
	"github.com/xaionaro-go/micfilter/pkg/preprocess/types"
)

type SpeexDSP = preprocess.Dummy

func New(
	frameSize int,
	sampleRate audio.SampleRate,
	opts types.Options,
) (*SpeexDSP, error) {
	return nil, fmt.Errorf("built without tag 'speexdsp'")
}
