package filter

import (
	"context"
	"errors"
	"slices"
	"testing"

	"refinery/internal/record"
)

func TestCatalog_NewDispatchesByType(t *testing.T) {
	var gotName string
	var gotParams Params
	cat := Catalog{
		"noop": func(name string, p Params) (Filter, error) {
			gotName, gotParams = name, p
			return Func{ID: name, Fn: func(_ context.Context, _ string, r *record.Record) (*record.Record, error) {
				return r, nil
			}}, nil
		},
	}

	f, err := cat.New("noop", "first", Params{"k": "v"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if f.Name() != "first" || gotName != "first" || gotParams["k"] != "v" {
		t.Fatalf("factory got name=%q params=%v", gotName, gotParams)
	}
}

func TestCatalog_UnknownType(t *testing.T) {
	cat := Catalog{"b": nil, "a": nil}
	_, err := cat.New("nope", "x", nil)
	if !errors.Is(err, ErrUnknownFilter) {
		t.Fatalf("want ErrUnknownFilter, got %v", err)
	}
	if !slices.Equal(cat.Types(), []string{"a", "b"}) {
		t.Fatalf("types = %v", cat.Types())
	}
}

func TestConfigf_WrapsErrConfig(t *testing.T) {
	err := Configf("summarize", "timeout must be > 0, got %d", 0)
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("want ErrConfig, got %v", err)
	}
	if want := "filter: invalid configuration: summarize: timeout must be > 0, got 0"; err.Error() != want {
		t.Fatalf("message = %q", err.Error())
	}
}
