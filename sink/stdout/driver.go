// refinery/sink/stdout/driver.go
package stdout

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	pb "refinery/api/v1"
	"refinery/sink"
)

/* ────────── public YAML config ────────── */
type Config struct {
	// Format is "json" (record per line) or "fluent"
	// ("<RFC3339 time> <tag>: <record json>").
	Format string `yaml:"format"`

	Output io.Writer `yaml:"-"` // os.Stdout when nil
}

/* ────────── driver ────────── */
type driver struct {
	fluent bool

	mu sync.Mutex // guards w
	w  *bufio.Writer
}

/* ────────── sink.Adapter ────────── */
func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	switch c.Format {
	case "", "json":
	case "fluent":
		d.fluent = true
	default:
		return fmt.Errorf("stdout-sink: unknown format %q", c.Format)
	}
	out := c.Output
	if out == nil {
		out = os.Stdout
	}
	d.w = bufio.NewWriter(out)
	return nil
}

func (d *driver) Push(f *pb.Frame) error {
	body, err := json.Marshal(f.Record)
	if err != nil {
		return fmt.Errorf("stdout-sink: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fluent {
		fmt.Fprintf(d.w, "%s %s: ", f.Time.Format(time.RFC3339), f.Tag)
	}
	d.w.Write(body)
	d.w.WriteByte('\n')
	return d.w.Flush()
}

func (d *driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.w == nil {
		return nil
	}
	return d.w.Flush()
}

/* ────────── auto-register ────────── */
func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}
