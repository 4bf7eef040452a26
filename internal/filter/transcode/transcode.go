// Package transcode implements the audio_transcode filter. The record's
// content is staged in a scratch directory, converted with ffmpeg, and the
// record's path, size and content are replaced with the converted file.
package transcode

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"refinery/internal/config"
	"refinery/internal/ffmpeg"
	"refinery/internal/filter"
	"refinery/internal/logging"
	"refinery/internal/record"
	"refinery/internal/telemetry"
)

const Type = "audio_transcode"

const (
	FieldPath    = "path"
	FieldSize    = "size"
	FieldContent = "content"
)

const (
	EncodingAuto   = "auto"
	EncodingBase64 = "base64"
	EncodingRaw    = "raw"
)

type Config struct {
	TranscodeOptions string `koanf:"transcode_options"`
	OutputExtension  string `koanf:"output_extension"`
	BufferPath       string `koanf:"buffer_path"`
	FFmpegBinary     string `koanf:"ffmpeg_binary"`
	ContentEncoding  string `koanf:"content_encoding"` // auto|base64|raw, for string content
}

func DefaultConfig() Config {
	return Config{
		TranscodeOptions: "-c:a aac -vn -af loudnorm=I=-15:TP=0.0:print_format=summary",
		OutputExtension:  "aac",
		BufferPath:       "/tmp/refinery-audio-transcoder",
		FFmpegBinary:     ffmpeg.DefaultBinary,
		ContentEncoding:  EncodingAuto,
	}
}

// Transcoder converts the file at in into out.
type Transcoder interface {
	Transcode(ctx context.Context, in, out string, opts []string) error
}

type Option func(*Filter)

func WithTranscoder(t Transcoder) Option {
	return func(f *Filter) { f.tc = t }
}

type Filter struct {
	name string
	cfg  Config
	opts []string
	tc   Transcoder
	log  *slog.Logger
}

func Factory(name string, params filter.Params) (filter.Filter, error) {
	return New(name, params)
}

func New(name string, params filter.Params, opts ...Option) (*Filter, error) {
	cfg := DefaultConfig()
	if err := config.DecodeParams(name, params, &cfg); err != nil {
		return nil, filter.Configf(name, "%v", err)
	}
	cfg.OutputExtension = strings.TrimPrefix(cfg.OutputExtension, ".")
	if cfg.OutputExtension == "" || strings.ContainsRune(cfg.OutputExtension, os.PathSeparator) {
		return nil, filter.Configf(name, "output_extension %q is not a file suffix", cfg.OutputExtension)
	}
	switch cfg.ContentEncoding {
	case EncodingAuto, EncodingBase64, EncodingRaw:
	default:
		return nil, filter.Configf(name, "content_encoding %q is not auto, base64 or raw", cfg.ContentEncoding)
	}
	if cfg.BufferPath == "" {
		return nil, filter.Configf(name, "buffer_path must not be empty")
	}
	if err := os.MkdirAll(cfg.BufferPath, 0o755); err != nil {
		return nil, filter.Configf(name, "buffer_path: %v", err)
	}

	f := &Filter{
		name: name,
		cfg:  cfg,
		opts: ffmpeg.SplitOptions(cfg.TranscodeOptions),
		tc:   ffmpeg.Transcoder{Binary: cfg.FFmpegBinary},
		log:  logging.For(name),
	}
	for _, o := range opts {
		o(f)
	}
	f.log.Info("audio_transcode configured",
		"options", cfg.TranscodeOptions, "extension", cfg.OutputExtension, "buffer_path", cfg.BufferPath)
	return f, nil
}

func (f *Filter) Name() string { return f.name }

func (f *Filter) Config() Config { return f.cfg }

// Apply fails with filter.ErrProcessing when the record lacks path/content or
// the conversion fails. The staged input is always removed; the converted
// file stays on disk at the record's new path.
func (f *Filter) Apply(ctx context.Context, tag string, rec *record.Record) (*record.Record, error) {
	src, ok := rec.GetString(FieldPath)
	if !ok || src == "" {
		return nil, fmt.Errorf("%w: record has no %q string", filter.ErrProcessing, FieldPath)
	}
	content, err := f.content(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", filter.ErrProcessing, src, err)
	}
	base := filepath.Base(src)
	if base == "." || base == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: %s: path has no file name", filter.ErrProcessing, src)
	}

	dir := filepath.Join(f.cfg.BufferPath, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", filter.ErrProcessing, src, err)
	}
	in := filepath.Join(dir, base)
	out := in + "." + f.cfg.OutputExtension

	if err := os.WriteFile(in, content, 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %s: stage input: %v", filter.ErrProcessing, src, err)
	}
	defer os.Remove(in)

	if err := f.tc.Transcode(ctx, in, out, f.opts); err != nil {
		_ = os.RemoveAll(dir)
		f.log.Error("transcode failed", "tag", tag, "path", src, "err", err)
		return nil, fmt.Errorf("%w: %s: %w", filter.ErrProcessing, src, err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %s: read output: %v", filter.ErrProcessing, src, err)
	}
	rec.Set(FieldPath, out)
	rec.Set(FieldSize, int64(len(data)))
	rec.Set(FieldContent, data)
	telemetry.TranscodedBytes.WithLabelValues(f.name).Add(float64(len(data)))
	f.log.Debug("transcoded", "tag", tag, "from", src, "to", out, "size", len(data))
	return rec, nil
}

// content reads the payload. JSON sources carry binary as base64 text; msgpack
// sources carry bin or raw str.
func (f *Filter) content(rec *record.Record) ([]byte, error) {
	v, ok := rec.Get(FieldContent)
	if !ok {
		return nil, fmt.Errorf("record has no %q field", FieldContent)
	}
	switch s := v.(type) {
	case []byte:
		return s, nil
	case string:
		switch f.cfg.ContentEncoding {
		case EncodingRaw:
			return []byte(s), nil
		case EncodingBase64:
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("%q is not base64: %v", FieldContent, err)
			}
			return b, nil
		default:
			b, _ := rec.GetBinary(FieldContent)
			return b, nil
		}
	default:
		return nil, fmt.Errorf("%q is %T, want bytes or string", FieldContent, v)
	}
}
