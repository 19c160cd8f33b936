// Package capability is the boundary between the orchestration engine and
// the external computations it invokes. A capability is an opaque unit of
// work registered under a name; the engine resolves a task's argument
// expressions, decodes them into the capability's input struct and calls the
// handler, treating everything behind that call as a black box.
package capability

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/seqflow-io/seqflow/internal/ctxlog"
)

// Handler holds the compiled Go parts of one capability.
type Handler struct {
	// NewInput returns a pointer to a fresh hcl-tagged input struct, or nil
	// when the capability takes no arguments.
	NewInput func() any

	// Fn is the invocation function, with signature
	// func(ctx context.Context, input *T) (cty.Value, error).
	// It is called by reflection so each capability keeps its own typed
	// input struct.
	Fn any
}

// Module is implemented by packages that contribute capabilities.
type Module interface {
	Register(r *Registry)
}

// Registry maps capability names to handlers for a single engine instance.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]*Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]*Handler)}
}

// Register adds a handler under name. Registering the same name twice is a
// programmer error and panics.
func (r *Registry) Register(name string, h *Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("capability '%s' already registered", name))
	}
	r.handlers[name] = h
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (*Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the sorted names of all registered capabilities.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke resolves name, decodes args into the handler's input struct and
// calls it. The returned value is the capability's output as seen by
// downstream expressions.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]cty.Value) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)

	h, ok := r.Lookup(name)
	if !ok {
		return cty.NilVal, fmt.Errorf("unknown capability '%s'", name)
	}

	var input any
	if h.NewInput != nil {
		input = h.NewInput()
		if err := decodeArgs(args, input); err != nil {
			return cty.NilVal, fmt.Errorf("capability '%s': %w", name, err)
		}
	} else if len(args) > 0 {
		return cty.NilVal, fmt.Errorf("capability '%s' takes no arguments, got %d", name, len(args))
	}

	logger.Debug("Invoking capability.", "capability", name)

	fn := reflect.ValueOf(h.Fn)
	callArgs := []reflect.Value{reflect.ValueOf(ctx)}
	if input != nil {
		callArgs = append(callArgs, reflect.ValueOf(input))
	} else {
		callArgs = append(callArgs, reflect.Zero(fn.Type().In(1)))
	}

	results := fn.Call(callArgs)
	if errResult := results[1].Interface(); errResult != nil {
		return cty.NilVal, errResult.(error)
	}

	output, ok := results[0].Interface().(cty.Value)
	if !ok {
		return cty.NilVal, fmt.Errorf("capability '%s' returned a non-cty.Value result: %T", name, results[0].Interface())
	}
	return output, nil
}
