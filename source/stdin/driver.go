// Package stdin reads newline-delimited JSON records, one event per line.
package stdin

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"time"

	pb "refinery/api/v1"
	"refinery/internal/logging"
	"refinery/internal/record"
)

const DefaultTag = "stdin"

// maxLine bounds one record; audio payloads inline as base64 can be large.
const maxLine = 64 << 20

type Config struct {
	Tag string
	// Input defaults to os.Stdin.
	Input io.Reader
}

type Driver struct {
	tag string
	in  io.Reader
	now func() time.Time
}

func New(cfg Config) *Driver {
	d := &Driver{tag: cfg.Tag, in: cfg.Input, now: time.Now}
	if d.tag == "" {
		d.tag = DefaultTag
	}
	if d.in == nil {
		d.in = os.Stdin
	}
	return d
}

// Run emits one frame per non-empty line and returns nil at end of input.
// Lines that are not JSON objects are logged and skipped.
func (d *Driver) Run(ctx context.Context, emit pb.EmitFunc) error {
	sc := bufio.NewScanner(d.in)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	line := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		rec, err := record.FormatJSON.Unmarshal(raw)
		if err != nil {
			logging.L().Warn("stdin: skipping line", "line", line, "err", err)
			continue
		}
		f := &pb.Frame{Event: record.Event{Tag: d.tag, Time: d.now(), Record: rec}}
		if err := emit(f); err != nil {
			return err
		}
	}
	return sc.Err()
}

func (d *Driver) Close() error {
	if c, ok := d.in.(io.Closer); ok && d.in != os.Stdin {
		return c.Close()
	}
	return nil
}
