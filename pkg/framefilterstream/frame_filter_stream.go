package framefilterstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/iamcalledrob/circular"
	"github.com/xaionaro-go/micfilter/pkg/audio"
	"github.com/xaionaro-go/micfilter/pkg/framefilter"
	"github.com/xaionaro-go/micfilter/pkg/preprocess"
)

// FrameFilterStream is a pull-based frame filter: every Read consumes
// whole frames from the input only when the already processed data is
// exhausted. A partial trailing frame is dropped.
type FrameFilterStream struct {
	preprocess.Preprocessor
	locker       sync.Mutex
	input        io.Reader
	outputBuffer *circular.Buffer
	samples      []int16
	frameBuf     []byte
	resultError  error
	readCtx      context.Context
}

var _ io.Reader = (*FrameFilterStream)(nil)

// New does not take the ownership of the preprocessor.
func New(
	ctx context.Context,
	input io.Reader,
	p preprocess.Preprocessor,
) (*FrameFilterStream, error) {
	frameSize := p.FrameSize()
	if frameSize <= 0 {
		return nil, fmt.Errorf("invalid frame size of the preprocessor: %d", frameSize)
	}
	frameBytes := frameSize * audio.BytesPerSampleS16
	return &FrameFilterStream{
		Preprocessor: p,
		input:        input,
		outputBuffer: circular.NewBuffer(2 * frameBytes),
		samples:      make([]int16, frameSize),
		frameBuf:     make([]byte, frameBytes),
		readCtx:      ctx,
	}, nil
}

func (s *FrameFilterStream) Read(p []byte) (_ret int, _err error) {
	logger.Tracef(s.readCtx, "Read, len:%d", len(p))
	defer func() { logger.Tracef(s.readCtx, "/Read, len:%d: %d, %v", len(p), _ret, _err) }()

	s.locker.Lock()
	defer s.locker.Unlock()

	for {
		n, err := s.outputBuffer.Read(p)
		if err != nil && !errors.Is(err, io.EOF) {
			return n, fmt.Errorf("unable to read from the circular buffer: %w", err)
		}
		if n > 0 || len(p) == 0 {
			return n, nil
		}
		if s.resultError != nil {
			return 0, s.resultError
		}
		if err := s.nextFrame(s.readCtx); err != nil {
			s.resultError = err
		}
	}
}

func (s *FrameFilterStream) nextFrame(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	_, err := io.ReadFull(s.input, s.frameBuf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	if err != nil {
		return fmt.Errorf("unable to read a frame: %w", err)
	}

	if _, err := framefilter.ProcessFrame(ctx, s.Preprocessor, s.samples, s.frameBuf); err != nil {
		return err
	}

	w, err := s.outputBuffer.Write(s.frameBuf)
	if err != nil {
		return fmt.Errorf("unable to write to the circular buffer: %w", err)
	}
	if w != len(s.frameBuf) {
		return fmt.Errorf("wrote != read: %d != %d", w, len(s.frameBuf))
	}
	return nil
}
