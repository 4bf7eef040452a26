// Package ffmpeg runs the ffmpeg binary for one-shot file transcodes.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const DefaultBinary = "ffmpeg"

// stderrTail bounds how much of ffmpeg's log ends up in an error.
const stderrTail = 2048

type Transcoder struct {
	// Binary is the ffmpeg executable; DefaultBinary when empty.
	Binary string
}

// SplitOptions splits an option string on runs of whitespace. Quoting is not
// interpreted, matching how the options are configured.
func SplitOptions(s string) []string {
	return strings.Fields(s)
}

// Args builds the ffmpeg argument vector for one transcode.
func Args(in, out string, opts []string) []string {
	args := make([]string, 0, len(opts)+6)
	args = append(args, "-hide_banner", "-nostdin", "-y", "-i", in)
	args = append(args, opts...)
	return append(args, out)
}

// Transcode converts in to out. The process is killed when ctx is done. A
// zero exit status without an output file is reported as a failure.
func (t Transcoder) Transcode(ctx context.Context, in, out string, opts []string) error {
	bin := t.Binary
	if bin == "" {
		bin = DefaultBinary
	}
	cmd := exec.CommandContext(ctx, bin, Args(in, out, opts)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg: %w", ctxErr)
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(stderr.Bytes()))
	}
	if fi, err := os.Stat(out); err != nil || fi.IsDir() {
		return fmt.Errorf("ffmpeg: no output written to %s: %s", out, tail(stderr.Bytes()))
	}
	return nil
}

func tail(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > stderrTail {
		b = b[len(b)-stderrTail:]
	}
	return string(b)
}
