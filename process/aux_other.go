//go:build !linux

package process

import (
	"context"
)

func (r *Runner) ulimit(ctx context.Context, dir string) string {
	return r.shellOutput(ctx, dir, "ulimit -a") + "\n"
}

func (r *Runner) umask(ctx context.Context, dir string) string {
	return r.shellOutput(ctx, dir, "umask")
}
