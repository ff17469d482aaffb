//go:build !speexdsp
// +build !speexdsp

package speexdsp

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/micfilter/pkg/preprocess/types"
)

func TestNewNotSupported(t *testing.T) {
	_, err := New(320, 16000, types.DefaultOptions())
	require.Error(t, err)
}
