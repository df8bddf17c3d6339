package psdbench

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrDuplicateDecoder = errors.New("decoder already registered")
	ErrUnknownDecoder   = errors.New("unknown decoder")
)

// Factory builds a decoder configured with opts.
type Factory func(opts Options) Decoder

// Registry maps decoder names to factories so that the decoders to compare
// are picked by configuration.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

func (r *Registry) Register(name string, f Factory) error {
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateDecoder, name)
	}

	r.factories[name] = f

	return nil
}

func (r *Registry) New(name string, opts Options) (Decoder, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDecoder, name)
	}

	return f(opts), nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
