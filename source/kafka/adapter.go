package kafka

import (
	"context"

	pb "refinery/api/v1"
)

type Adapter interface {
	Configure(Config) error
	Run(context.Context, pb.EmitFunc) error
	Close() error
}
