package sink

import (
	"fmt"

	pb "refinery/api/v1"
)

// Adapter is the common behaviour every sink exposes. Push may be called
// from several goroutines (one per Kafka partition claim).
type Adapter interface {
	Configure(any) error  // driver-specific YAML ⇒ struct
	Push(*pb.Frame) error // consume one frame
	Close() error         // idempotent
}

/*──────── registry ───────*/

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}
