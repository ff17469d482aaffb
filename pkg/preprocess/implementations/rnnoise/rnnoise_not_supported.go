//go:build !rnnoise
// +build !rnnoise

package rnnoise

import (
	"fmt"

	"github.com/xaionaro-go/micfilter/pkg/audio"
	"github.com/xaionaro-go/micfilter/pkg/preprocess"
	"github.com/xaionaro-go/micfilter/pkg/preprocess/types"
)

type RNNoise = preprocess.Dummy

func New(
	frameSize int,
	sampleRate audio.SampleRate,
	opts types.Options,
) (*RNNoise, error) {
	return nil, fmt.Errorf("built without tag 'rnnoise'")
}
