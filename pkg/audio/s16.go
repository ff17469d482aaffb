package audio

import (
	"encoding/binary"
	"fmt"
)

const BytesPerSampleS16 = 2

// DecodeS16 converts host-endian signed 16-bit PCM bytes into samples.
func DecodeS16(dst []int16, src []byte) error {
	if len(src) != len(dst)*BytesPerSampleS16 {
		return fmt.Errorf("the size of the input (%d bytes) does not match %d samples", len(src), len(dst))
	}
	for idx := range dst {
		dst[idx] = int16(binary.NativeEndian.Uint16(src[idx*BytesPerSampleS16:]))
	}
	return nil
}

// EncodeS16 converts samples into host-endian signed 16-bit PCM bytes.
func EncodeS16(dst []byte, src []int16) error {
	if len(dst) != len(src)*BytesPerSampleS16 {
		return fmt.Errorf("the size of the output (%d bytes) does not match %d samples", len(dst), len(src))
	}
	for idx, v := range src {
		binary.NativeEndian.PutUint16(dst[idx*BytesPerSampleS16:], uint16(v))
	}
	return nil
}
