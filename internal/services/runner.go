package services

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner abstracts external command execution so stage handlers can be tested
// with stubs instead of real binaries.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// NewRunner returns a Runner that shells out via os/exec. A positive timeout
// bounds each invocation independently of the caller's context.
func NewRunner(logger *slog.Logger, timeout time.Duration) Runner {
	return &execRunner{logger: logger, timeout: timeout}
}

type execRunner struct {
	logger  *slog.Logger
	timeout time.Duration
}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	if r.logger != nil {
		if err != nil {
			r.logger.Error("exec failed",
				slog.String("cmd", name),
				slog.String("args", strings.Join(args, " ")),
				slog.Int64("duration_ms", dur.Milliseconds()),
				slog.Any("error", err),
				slog.String("stderr", truncateOutput(errb.String(), 8<<10)),
			)
		} else {
			r.logger.Debug("exec ok",
				slog.String("cmd", name),
				slog.String("args", strings.Join(args, " ")),
				slog.Int64("duration_ms", dur.Milliseconds()),
				slog.Int("stdout_bytes", out.Len()),
				slog.Int("stderr_bytes", errb.Len()),
			)
		}
	}

	return out.Bytes(), errb.Bytes(), err
}

func truncateOutput(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
