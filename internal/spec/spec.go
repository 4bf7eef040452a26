package spec

type RetryPolicy struct {
	Attempts  int `yaml:"attempts"`
	BackoffMS int `yaml:"backoff_ms"`
}

type FilterSpec struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"` // "llm_generate", "audio_transcode", "grpc"
	Params map[string]any `yaml:"params"`

	// remote (type: grpc) only
	Address    string `yaml:"address"`     // e.g. "localhost:7070"
	RemoteName string `yaml:"remote_name"` // filter name on the remote side, defaults to Name

	TimeoutMS   int         `yaml:"timeout_ms"`
	RetryPolicy RetryPolicy `yaml:"retry_policy"`
}

// Remote reports whether the filter runs on another refinery instance.
func (f FilterSpec) Remote() bool { return f.Type == "grpc" }

type SourceSpec struct {
	Kind   string `yaml:"kind"`   // "kafka", "stdin"
	Driver string `yaml:"driver"` // kafka only
	Config string `yaml:"config"`
	Format string `yaml:"format"` // record encoding: "json" | "msgpack"
	Tag    string `yaml:"tag"`    // stdin only
}

type StdoutSinkSpec struct {
	Format string `yaml:"format"` // "json" | "fluent"
}

type KafkaSinkSpec struct {
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic"`
	RequiredAcks int16    `yaml:"required_acks"` // 0,1,-1
	Version      string   `yaml:"version"`
	Format       string   `yaml:"format"`
}

type sinkConfigs struct {
	Kafka  KafkaSinkSpec  `yaml:"kafka"`
	Stdout StdoutSinkSpec `yaml:"stdout"`
}

type File struct {
	SchemaVersion string `yaml:"schema_version"`

	Source SourceSpec `yaml:"source"`

	// Ordered list of filters applied between source and sinks.
	Filters []FilterSpec `yaml:"filters"`

	Sinks       []string    `yaml:"sinks"`
	SinkConfigs sinkConfigs `yaml:"sink_configs"`

	// OnError is "drop" (default) or "halt".
	OnError string `yaml:"on_error"`
}
