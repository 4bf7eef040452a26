// Package filter defines the single-record transform contract shared by the
// built-in filters, the pipeline runner and the gRPC transport.
package filter

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"refinery/internal/record"
)

var (
	// ErrConfig marks a configuration problem detected while constructing a
	// filter. It is fatal: the pipeline must not start.
	ErrConfig = errors.New("filter: invalid configuration")
	// ErrProcessing marks a per-record failure that a filter chose to
	// propagate instead of absorbing into the record.
	ErrProcessing = errors.New("filter: processing failed")
	ErrUnknownFilter = errors.New("filter: unknown filter type")
)

// Filter transforms one record. Implementations must be safe for concurrent
// use; the only state shared across calls is read-only configuration.
type Filter interface {
	Name() string
	Apply(ctx context.Context, tag string, rec *record.Record) (*record.Record, error)
}

// Closer is implemented by filters holding resources worth releasing.
type Closer interface {
	Close() error
}

// Params are the raw, undecoded parameters of one filter instance.
type Params map[string]any

// Factory builds a named filter instance from its parameters.
type Factory func(name string, params Params) (Filter, error)

// Catalog maps filter type names to factories. It is built explicitly by the
// caller; there is no package-level registry.
type Catalog map[string]Factory

func (c Catalog) New(typ, name string, params Params) (Filter, error) {
	f, ok := c[typ]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownFilter, typ, c.Types())
	}
	return f(name, params)
}

func (c Catalog) Types() []string {
	return slices.Sorted(maps.Keys(c))
}

// Configf wraps a configuration failure for filter name.
func Configf(name, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrConfig, name, fmt.Sprintf(format, args...))
}

// Func adapts a plain function to Filter; handy for tests and glue stages.
type Func struct {
	ID string
	Fn func(ctx context.Context, tag string, rec *record.Record) (*record.Record, error)
}

func (f Func) Name() string { return f.ID }

func (f Func) Apply(ctx context.Context, tag string, rec *record.Record) (*record.Record, error) {
	return f.Fn(ctx, tag, rec)
}
