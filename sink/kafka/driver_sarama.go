package kafka

import (
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	pb "refinery/api/v1"
	"refinery/internal/logging"
	"refinery/internal/record"
	"refinery/sink"
)

type Config struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Acks    int16    `yaml:"required_acks"` // 0,1,-1
	Version string   `yaml:"version"`
	Format  string   `yaml:"format"` // json|msgpack
}

type driver struct {
	cfg    Config
	format record.Format
	p      sarama.AsyncProducer

	drained   sync.WaitGroup // errors goroutine
	closeOnce sync.Once
}

// SaramaConfig maps cfg onto a producer config.
func SaramaConfig(cfg Config) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	if cfg.Version != "" {
		ver, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, err
		}
		sc.Version = ver
	}
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	sc.Producer.Return.Errors = true
	return sc, nil
}

func (d *driver) Configure(c any) error {
	cfg, ok := c.(Config)
	if !ok {
		return fmt.Errorf("kafka-sink: want Config, got %T", c)
	}
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return errors.New("kafka-sink: brokers and topic are required")
	}
	sc, err := SaramaConfig(cfg)
	if err != nil {
		return fmt.Errorf("kafka-sink: %w", err)
	}
	p, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return fmt.Errorf("kafka-sink: %w", err)
	}
	return d.attach(cfg, p)
}

// attach wires an existing producer; tests hand in a mock.
func (d *driver) attach(cfg Config, p sarama.AsyncProducer) error {
	format, err := record.ParseFormat(cfg.Format)
	if err != nil {
		return fmt.Errorf("kafka-sink: %w", err)
	}
	d.cfg, d.format, d.p = cfg, format, p
	d.drained.Add(1)
	go func() {
		defer d.drained.Done()
		for perr := range p.Errors() {
			logging.L().Error("kafka-sink: produce failed", "topic", perr.Msg.Topic, "err", perr.Err)
		}
	}()
	return nil
}

func (d *driver) Push(f *pb.Frame) error {
	value, err := d.format.Marshal(f.Record)
	if err != nil {
		return fmt.Errorf("kafka-sink: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: d.cfg.Topic,
		Value: sarama.ByteEncoder(value),
	}
	if len(f.Key) > 0 {
		msg.Key = sarama.ByteEncoder(f.Key)
	}
	for k, v := range f.Headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: v})
	}
	d.p.Input() <- msg
	return nil
}

func (d *driver) Close() error {
	d.closeOnce.Do(func() {
		if d.p == nil {
			return
		}
		d.p.AsyncClose()
		d.drained.Wait()
	})
	return nil
}

func init() { sink.Register("kafka", func() sink.Adapter { return &driver{} }) }
