package config

import (
	"refinery/internal/spec"
	kcfg "refinery/source/kafka"
)

// LoadKafkaConfig loads the consumer settings kept beside the pipeline file.
// A format set on the pipeline's source block wins over the file and env.
func LoadKafkaConfig(path string, src spec.SourceSpec) (kcfg.Config, error) {
	c, err := kcfg.LoadConfig(path)
	if err != nil {
		return c, err
	}
	if src.Format != "" {
		c.Format = src.Format
	}
	return c, nil
}
