package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pb "refinery/api/v1"
	"refinery/internal/filter"
	"refinery/internal/record"
	"refinery/source/stdin"
)

type fakeFilter struct {
	name  string
	calls int32
	mode  string
}

func (f *fakeFilter) Name() string { return f.name }

func (f *fakeFilter) Apply(ctx context.Context, tag string, rec *record.Record) (*record.Record, error) {
	c := atomic.AddInt32(&f.calls, 1)
	switch f.mode {
	case "drop":
		return nil, nil
	case "error":
		return nil, fmt.Errorf("%w: boom", filter.ErrProcessing)
	case "errorThenOK":
		rec.Set("attempt", int64(c))
		if c == 1 {
			return nil, fmt.Errorf("%w: transient", filter.ErrProcessing)
		}
	case "slow":
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	s, _ := rec.GetString("trail")
	rec.Set("trail", s+f.name)
	return rec, nil
}

type captureSink struct {
	mu     sync.Mutex
	pushed []*pb.Frame
}

func (c *captureSink) Configure(any) error { return nil }
func (c *captureSink) Push(f *pb.Frame) error {
	c.mu.Lock()
	c.pushed = append(c.pushed, f)
	c.mu.Unlock()
	return nil
}
func (c *captureSink) Close() error { return nil }

func makeFrame() *pb.Frame {
	rec := record.New()
	rec.Set("message", "hello")
	return &pb.Frame{
		Event:      record.Event{Tag: "t", Time: time.Now(), Record: rec},
		Checkpoint: &pb.KafkaOffset{Topic: "t", Partition: 1, Offset: 42},
	}
}

func TestRunner_FilterOK_Forwards(t *testing.T) {
	r := NewRunner()
	r.AddFilter(&fakeFilter{name: "a", mode: "ok"}, 100*time.Millisecond, 0, 0)
	cs := &captureSink{}
	r.AddSink(cs)

	if err := r.pushFrame(context.Background(), makeFrame()); err != nil {
		t.Fatalf("pushFrame: %v", err)
	}
	if len(cs.pushed) != 1 {
		t.Fatalf("expected 1 pushed frame, got %d", len(cs.pushed))
	}
	if m, _ := cs.pushed[0].Record.GetString("message"); m != "hello" {
		t.Fatalf("unexpected message: %q", m)
	}
}

func TestRunner_FilterDrop_NoPush(t *testing.T) {
	r := NewRunner()
	next := &fakeFilter{name: "b"}
	r.AddFilter(&fakeFilter{name: "a", mode: "drop"}, 0, 0, 0)
	r.AddFilter(next, 0, 0, 0)
	cs := &captureSink{}
	r.AddSink(cs)

	if err := r.pushFrame(context.Background(), makeFrame()); err != nil {
		t.Fatalf("pushFrame: %v", err)
	}
	if len(cs.pushed) != 0 || next.calls != 0 {
		t.Fatalf("dropped record went on: pushed=%d next=%d", len(cs.pushed), next.calls)
	}
}

func TestRunner_FilterRetryThenOK(t *testing.T) {
	r := NewRunner()
	r.AddFilter(&fakeFilter{name: "a", mode: "errorThenOK"}, 100*time.Millisecond, 1, time.Millisecond)
	cs := &captureSink{}
	r.AddSink(cs)

	if err := r.pushFrame(context.Background(), makeFrame()); err != nil {
		t.Fatalf("pushFrame: %v", err)
	}
	if len(cs.pushed) != 1 {
		t.Fatalf("expected 1 pushed frame after retry, got %d", len(cs.pushed))
	}
	// the failed try worked on a copy
	if n, _ := cs.pushed[0].Record.Get("attempt"); n != int64(2) {
		t.Fatalf("attempt = %v", n)
	}
}

func TestRunner_MultiStageOrder(t *testing.T) {
	r := NewRunner()
	r.AddFilter(&fakeFilter{name: "1"}, 0, 0, 0)
	r.AddFilter(&fakeFilter{name: "2"}, 0, 0, 0)
	r.AddFilter(&fakeFilter{name: "3"}, 0, 0, 0)
	cs := &captureSink{}
	r.AddSink(cs)

	if err := r.pushFrame(context.Background(), makeFrame()); err != nil {
		t.Fatal(err)
	}
	if s, _ := cs.pushed[0].Record.GetString("trail"); s != "123" {
		t.Fatalf("trail = %q", s)
	}
}

func TestRunner_OnErrorDropVsHalt(t *testing.T) {
	for _, mode := range []OnError{DropOnError, HaltOnError} {
		t.Run(string(mode), func(t *testing.T) {
			r := NewRunner()
			r.SetOnError(mode)
			r.AddFilter(&fakeFilter{name: "bad", mode: "error"}, 0, 2, 0)
			cs := &captureSink{}
			r.AddSink(cs)

			err := r.pushFrame(context.Background(), makeFrame())
			if len(cs.pushed) != 0 {
				t.Fatal("failed record reached the sink")
			}
			if mode == HaltOnError {
				if !errors.Is(err, filter.ErrProcessing) || !strings.Contains(err.Error(), "filter bad") {
					t.Fatalf("halt: got %v", err)
				}
			} else if err != nil {
				t.Fatalf("drop: got %v", err)
			}
		})
	}
}

func TestRunner_StageTimeout(t *testing.T) {
	r := NewRunner()
	r.SetOnError(HaltOnError)
	r.AddFilter(&fakeFilter{name: "slow", mode: "slow"}, 20*time.Millisecond, 0, 0)

	_, err := r.Apply(context.Background(), "t", record.New())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
}

func TestRunner_RunStdin(t *testing.T) {
	r := NewRunner()
	r.SetSource(stdin.New(stdin.Config{Tag: "in", Input: strings.NewReader("{\"message\":\"a\"}\n{\"message\":\"b\"}\n")}))
	r.AddFilter(&fakeFilter{name: "x"}, 0, 0, 0)
	cs := &captureSink{}
	r.AddSink(cs)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(cs.pushed) != 2 || cs.pushed[1].Tag != "in" {
		t.Fatalf("pushed = %d frames", len(cs.pushed))
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRunner_RunWithoutSource(t *testing.T) {
	if err := NewRunner().Run(context.Background()); err == nil {
		t.Fatal("expected error without a source")
	}
}

func testCatalog() filter.Catalog {
	return filter.Catalog{
		"tag": func(name string, p filter.Params) (filter.Filter, error) {
			if p["fail"] == true {
				return nil, filter.Configf(name, "bad params")
			}
			return &fakeFilter{name: name}, nil
		},
	}
}

func writePipeline(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "pipeline.yml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCompile_StdinPipeline(t *testing.T) {
	p := writePipeline(t, `schema_version: v1
source: { kind: stdin, tag: app }
filters:
  - { name: first, type: tag, timeout_ms: 500, retry_policy: { attempts: 1, backoff_ms: 5 } }
  - { name: remote, type: grpc, address: "localhost:1", remote_name: upper }
sinks: [stdout]
sink_configs:
  stdout: { format: fluent }
on_error: halt
`)
	r, err := Compile(p, testCatalog())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer r.Close()

	if !r.HasSource() || r.onError != HaltOnError || len(r.sinks) != 1 {
		t.Fatalf("runner = %+v", r)
	}
	fs := r.Filters()
	if len(fs) != 2 || fs[0].Name() != "first" || fs[1].Name() != "remote" {
		t.Fatalf("filters = %v", fs)
	}
	if st := r.stages[0]; st.timeout != 500*time.Millisecond || st.attempts != 1 || st.backoff != 5*time.Millisecond {
		t.Fatalf("stage = %+v", st)
	}
}

func TestCompile_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown filter": "filters: [{ name: a, type: nope }]\n",
		"filter config":  "filters: [{ name: a, type: tag, params: { fail: true } }]\n",
		"unknown sink":   "sinks: [s3]\n",
		"unknown source": "source: { kind: mqtt }\n",
		"stdin msgpack":  "source: { kind: stdin, format: msgpack }\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Compile(writePipeline(t, body), testCatalog()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	_, err := Compile(writePipeline(t, cases["filter config"]), testCatalog())
	if !errors.Is(err, filter.ErrConfig) {
		t.Fatalf("want ErrConfig, got %v", err)
	}
}

func TestCompileFilters_IgnoresSource(t *testing.T) {
	p := writePipeline(t, `source: { kind: kafka, config: missing.yml }
filters: [{ name: only, type: tag }]
sinks: [kafka]
`)
	r, err := CompileFilters(p, testCatalog())
	if err != nil {
		t.Fatalf("CompileFilters: %v", err)
	}
	if r.HasSource() || len(r.sinks) != 0 || len(r.Filters()) != 1 {
		t.Fatalf("runner = %+v", r)
	}
	out, err := r.Apply(context.Background(), "t", record.New())
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := out.GetString("trail"); s != "only" {
		t.Fatalf("trail = %q", s)
	}
}
