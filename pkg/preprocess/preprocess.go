package preprocess

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/micfilter/pkg/audio"
	"github.com/xaionaro-go/micfilter/pkg/preprocess/registry"
	"github.com/xaionaro-go/micfilter/pkg/preprocess/types"
)

type Preprocessor = types.Preprocessor
type Options = types.Options

func DefaultOptions() Options {
	return types.DefaultOptions()
}

// NewAuto initializes the highest-priority registered preprocessor that
// accepts the given parameters.
func NewAuto(
	ctx context.Context,
	frameSize int,
	sampleRate audio.SampleRate,
	opts Options,
) (Preprocessor, error) {
	factories := registry.Factories()
	if len(factories) == 0 {
		return nil, fmt.Errorf("no preprocessor implementations are registered")
	}

	var mErr *multierror.Error
	for _, factory := range factories {
		p, err := factory.NewPreprocessor(frameSize, sampleRate, opts)
		logger.Debugf(ctx, "initializing preprocessor using %T result is %v", factory, err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to initialize using %T: %w", factory, err))
			continue
		}
		return p, nil
	}

	return nil, fmt.Errorf("was unable to initialize any preprocessor: %w", mErr.ErrorOrNil())
}
