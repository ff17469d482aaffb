package audio

import (
	"fmt"
	"time"
)

type SampleRate uint32

func (r SampleRate) Duration(samples uint64) time.Duration {
	if r == 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(r)
}

type PCMFormat uint

const (
	PCMFormatUndefined = PCMFormat(iota)
	PCMFormatS16LE
	PCMFormatS16BE
)

func (f PCMFormat) String() string {
	switch f {
	case PCMFormatUndefined:
		return "undefined"
	case PCMFormatS16LE:
		return "s16le"
	case PCMFormatS16BE:
		return "s16be"
	default:
		return fmt.Sprintf("unknown_format_%d", uint(f))
	}
}

// Size returns the size of one sample in bytes.
func (f PCMFormat) Size() uint {
	switch f {
	case PCMFormatS16LE, PCMFormatS16BE:
		return 2
	default:
		return 0
	}
}
