package audio

import "encoding/binary"

type endian int

const (
	endianUndefined = endian(iota)
	endianBig
	endianLittle
)

func getEndian() endian {
	v := binary.NativeEndian.Uint16([]byte{1, 2})
	switch v {
	case 0x0102:
		return endianBig
	case 0x0201:
		return endianLittle
	}
	return endianUndefined
}

// PCMFormatS16NE returns the signed 16-bit format in the byte order of this computer.
func PCMFormatS16NE() PCMFormat {
	switch getEndian() {
	case endianBig:
		return PCMFormatS16BE
	case endianLittle:
		return PCMFormatS16LE
	}
	return PCMFormatUndefined
}
