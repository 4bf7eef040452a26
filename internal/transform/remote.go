package transform

import (
	"context"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pb "refinery/api/v1"
	"refinery/internal/filter"
	"refinery/internal/record"
)

// Remote is a filter.Filter backed by a filter on another server.
type Remote struct {
	name   string
	remote string
	cli    Client
}

// NewRemote names the stage name locally and calls remoteName on cli; an
// empty remoteName reuses name.
func NewRemote(name, remoteName string, cli Client) *Remote {
	if remoteName == "" {
		remoteName = name
	}
	return &Remote{name: name, remote: remoteName, cli: cli}
}

func (r *Remote) Name() string { return r.name }

// Apply returns a nil record when the remote filter dropped it. Call errors
// wrap filter.ErrProcessing, except NotFound and FailedPrecondition which
// wrap filter.ErrConfig.
func (r *Remote) Apply(ctx context.Context, tag string, rec *record.Record) (*record.Record, error) {
	resp, err := r.cli.Filter(ctx, &pb.FilterRequest{Filter: r.remote, Tag: tag, Record: rec})
	if err != nil {
		kind := filter.ErrProcessing
		switch status.Code(err) {
		case codes.NotFound, codes.FailedPrecondition:
			kind = filter.ErrConfig
		}
		return nil, fmt.Errorf("%w: remote %s: %s", kind, r.remote, status.Convert(err).Message())
	}
	return resp.Record, nil
}

func (r *Remote) Close() error { return r.cli.Close() }
