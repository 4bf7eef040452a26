package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"refinery/internal/filter"
	"refinery/internal/record"
	"refinery/internal/transform"
)

func upper() filter.Filter {
	return filter.Func{ID: "upper", Fn: func(_ context.Context, tag string, rec *record.Record) (*record.Record, error) {
		s, _ := rec.GetString("message")
		rec.Set("message", fmt.Sprintf("%s:%s", tag, s+"!"))
		return rec, nil
	}}
}

func failing(kind error) filter.Filter {
	return filter.Func{ID: "broken", Fn: func(context.Context, string, *record.Record) (*record.Record, error) {
		return nil, fmt.Errorf("%w: no ffmpeg", kind)
	}}
}

func dropper() filter.Filter {
	return filter.Func{ID: "drop", Fn: func(context.Context, string, *record.Record) (*record.Record, error) {
		return nil, nil
	}}
}

func startBufconn(t *testing.T, filters ...filter.Filter) *transform.GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(lis, filters)
	go func() { _ = srv.Serve() }()
	t.Cleanup(srv.Stop)

	cli, err := transform.NewGRPCClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	t.Cleanup(func() { _ = cli.Close() })
	return cli
}

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRemote_RoundTrip(t *testing.T) {
	cli := startBufconn(t, upper())
	r := transform.NewRemote("shout", "upper", cli)

	rec := record.New()
	rec.Set("message", "hi")
	rec.Set("content", []byte{0xde, 0xad})

	out, err := r.Apply(ctxT(t), "app.log", rec)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got, _ := out.GetString("message"); got != "app.log:hi!" {
		t.Fatalf("message = %q", got)
	}
	if b, ok := out.Get("content"); !ok || string(b.([]byte)) != "\xde\xad" {
		t.Fatalf("content = %#v", b)
	}
	if r.Name() != "shout" {
		t.Fatalf("Name = %q", r.Name())
	}
}

func TestRemote_ErrorMapping(t *testing.T) {
	cli := startBufconn(t, failing(filter.ErrProcessing))

	_, err := transform.NewRemote("broken", "", cli).Apply(ctxT(t), "t", record.New())
	if !errors.Is(err, filter.ErrProcessing) {
		t.Fatalf("want ErrProcessing, got %v", err)
	}

	_, err = transform.NewRemote("missing", "", cli).Apply(ctxT(t), "t", record.New())
	if !errors.Is(err, filter.ErrConfig) {
		t.Fatalf("want ErrConfig for unknown remote filter, got %v", err)
	}
}

func TestRemote_Drop(t *testing.T) {
	cli := startBufconn(t, dropper())
	out, err := transform.NewRemote("drop", "", cli).Apply(ctxT(t), "t", record.New())
	if err != nil || out != nil {
		t.Fatalf("want dropped record, got %v, %v", out, err)
	}
}

func TestHealth_PerFilter(t *testing.T) {
	cli := startBufconn(t, upper())

	ok, err := cli.Health(ctxT(t), "upper")
	if err != nil || !ok {
		t.Fatalf("upper health = %v, %v", ok, err)
	}
	if ok, err = cli.Health(ctxT(t), ""); err != nil || !ok {
		t.Fatalf("server health = %v, %v", ok, err)
	}
	if _, err := cli.Health(ctxT(t), "nope"); err == nil {
		t.Fatal("expected NotFound for unknown service")
	}
}
