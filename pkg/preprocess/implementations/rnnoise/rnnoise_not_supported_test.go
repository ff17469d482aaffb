//go:build !rnnoise
// +build !rnnoise

package rnnoise

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/micfilter/pkg/preprocess/types"
)

func TestNewNotSupported(t *testing.T) {
	_, err := New(480, 48000, types.DefaultOptions())
	require.Error(t, err)
}
