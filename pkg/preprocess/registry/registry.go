package registry

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/xaionaro-go/micfilter/pkg/audio"
	"github.com/xaionaro-go/micfilter/pkg/preprocess/types"
)

type PreprocessorFactory interface {
	NewPreprocessor(
		frameSize int,
		sampleRate audio.SampleRate,
		opts types.Options,
	) (types.Preprocessor, error)
}

type factoryWithPriority struct {
	Priority int
	PreprocessorFactory
}

var factoryRegistry = map[reflect.Type]factoryWithPriority{}

func RegisterFactory(
	priority int,
	factory PreprocessorFactory,
) {
	t := reflect.ValueOf(factory).Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if _, ok := factoryRegistry[t]; ok {
		panic(fmt.Errorf("there is already registered a factory of Preprocessor of type %v", t))
	}
	factoryRegistry[t] = factoryWithPriority{
		Priority:            priority,
		PreprocessorFactory: factory,
	}
}

// Factories returns the registered factories, the highest priority first.
func Factories() []PreprocessorFactory {
	var factoriesWithPriorities []factoryWithPriority
	for _, factory := range factoryRegistry {
		factoriesWithPriorities = append(factoriesWithPriorities, factory)
	}
	sort.SliceStable(factoriesWithPriorities, func(i, j int) bool {
		return factoriesWithPriorities[i].Priority > factoriesWithPriorities[j].Priority
	})

	var factories []PreprocessorFactory
	for _, factory := range factoriesWithPriorities {
		factories = append(factories, factory.PreprocessorFactory)
	}

	return factories
}
