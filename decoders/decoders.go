// Package decoders adapts concrete layered document decoders to the
// psdbench capability interfaces.
package decoders

import "github.com/hamzali/psdbench"

const (
	LazyName      = "lazy"
	CompositeName = "composite"
	FlagsName     = "flags"
	OOVName       = "oov"
)

// Register adds every adapter in this package to r.
func Register(r *psdbench.Registry) error {
	for name, f := range map[string]psdbench.Factory{
		LazyName:      NewLazy,
		CompositeName: NewComposite,
		FlagsName:     NewFlags,
		OOVName:       NewOOV,
	} {
		if err := r.Register(name, f); err != nil {
			return err
		}
	}

	return nil
}
