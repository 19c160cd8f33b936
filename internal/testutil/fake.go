package testutil

import (
	"context"
	"sync/atomic"

	"github.com/zclconf/go-cty/cty"

	"github.com/seqflow-io/seqflow/internal/capability"
)

// Fake is a test capability with an invocation counter. T is the hcl-tagged
// input struct the engine decodes arguments into; a nil Fn succeeds with an
// empty object.
type Fake[T any] struct {
	Name  string
	Fn    func(ctx context.Context, input *T) (cty.Value, error)
	Calls atomic.Int32
}

// Register registers the fake with the engine's registry.
func (f *Fake[T]) Register(r *capability.Registry) {
	r.Register(f.Name, &capability.Handler{
		NewInput: func() any { return new(T) },
		Fn: func(ctx context.Context, input *T) (cty.Value, error) {
			f.Calls.Add(1)
			if f.Fn == nil {
				return cty.EmptyObjectVal, nil
			}
			return f.Fn(ctx, input)
		},
	})
}
