// Package pb holds the types that cross package and process boundaries: the
// frames sources emit, and the FilterService wire contract.
package pb

import "refinery/internal/record"

// KafkaOffset locates the message a frame was read from.
type KafkaOffset struct {
	Topic     string `msgpack:"topic"`
	Partition int32  `msgpack:"partition"`
	Offset    int64  `msgpack:"offset"`
}

// Frame is one decoded source message travelling through the runner.
type Frame struct {
	record.Event

	Key     []byte
	Headers map[string][]byte

	// Checkpoint is nil for sources without offsets (stdin).
	Checkpoint *KafkaOffset
}

// EmitFunc receives every frame a source produces. A non-nil error stops the
// source.
type EmitFunc func(*Frame) error
