package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	pb "refinery/api/v1"
	"refinery/internal/logging"
	"refinery/internal/record"
)

type SaramaDriver struct {
	cfg    Config
	format record.Format
	cl     sarama.Client
	group  sarama.ConsumerGroup
}

func init() {
	Register("sarama", func() Adapter { return &SaramaDriver{} })
}

func (d *SaramaDriver) Configure(config Config) error {
	format, err := record.ParseFormat(config.Format)
	if err != nil {
		return err
	}
	d.cfg, d.format = config, format
	if len(config.Brokers) == 0 || len(config.Topics) == 0 {
		return errors.New("kafka: brokers and topics are required")
	}

	ver, err := sarama.ParseKafkaVersion(config.Version)
	if err != nil {
		return err
	}
	sc := sarama.NewConfig()
	sc.Version = ver
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.AutoCommit.Enable = true
	sc.Consumer.Offsets.AutoCommit.Interval = config.CommitInterval
	if config.TLSEn {
		sc.Net.TLS.Enable = true
	}
	if config.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = config.SASLUser, config.SASLPass
	}
	switch config.StartFrom {
	case "oldest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	if d.cl, err = sarama.NewClient(config.Brokers, sc); err != nil {
		return err
	}
	d.group, err = sarama.NewConsumerGroupFromClient(config.GroupID, d.cl)
	return err
}

// Run consumes until ctx is done or emit fails; the emit error is returned.
func (d *SaramaDriver) Run(ctx context.Context, emit pb.EmitFunc) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	go func() {
		for err := range d.group.Errors() {
			logging.L().Error("kafka consumer error", "err", err)
		}
	}()

	handler := &groupHandler{format: d.format, emit: func(f *pb.Frame) error {
		if err := emit(f); err != nil {
			cancel(err)
			return err
		}
		return nil
	}}

	for {
		if err := d.group.Consume(ctx, d.cfg.Topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return context.Cause(ctx)
			}
			return err
		}
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
	}
}

func (d *SaramaDriver) Close() error {
	var errs []error
	if d.group != nil {
		errs = append(errs, d.group.Close())
	}
	if d.cl != nil && !d.cl.Closed() {
		errs = append(errs, d.cl.Close())
	}
	return errors.Join(errs...)
}

type groupHandler struct {
	format record.Format
	emit   pb.EmitFunc
}

func (*groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (*groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks a message only after emit returned; undecodable values
// are logged and marked so they are not redelivered.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			frame, err := decode(h.format, msg)
			if err != nil {
				logging.L().Warn("kafka: skipping undecodable message",
					"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
				sess.MarkMessage(msg, "")
				continue
			}
			if err := h.emit(frame); err != nil {
				return fmt.Errorf("kafka %s[%d]@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
			}
			sess.MarkMessage(msg, "")
		}
	}
}

func decode(format record.Format, msg *sarama.ConsumerMessage) (*pb.Frame, error) {
	rec, err := format.Unmarshal(msg.Value)
	if err != nil {
		return nil, err
	}
	return &pb.Frame{
		Event:      record.Event{Tag: msg.Topic, Time: msg.Timestamp, Record: rec},
		Key:        msg.Key,
		Headers:    toHeaderMap(msg.Headers),
		Checkpoint: &pb.KafkaOffset{Topic: msg.Topic, Partition: msg.Partition, Offset: msg.Offset},
	}, nil
}

func toHeaderMap(src []*sarama.RecordHeader) map[string][]byte {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(src))
	for _, h := range src {
		out[string(h.Key)] = h.Value
	}
	return out
}
