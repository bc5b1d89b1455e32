package process

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"os/user"
	"sort"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// Aux is a snapshot of the environment a command has been started in.
type Aux struct {
	Pwd         string // Working directory of the command
	Environment string // KEY=VALUE lines, sorted by key
	Umask       string // File mode creation mask, octal
	Hostname    string
	User        string
	Group       string // Primary group of the user
	Shell       string // Login shell of the user, from $SHELL
	Ulimit      string // Resource limits, one per line
	CPU         string // Brand name of the processor
}

func (r *Runner) snapshot(ctx context.Context, dir string) Aux {
	aux := Aux{
		Pwd:         dir,
		Environment: r.environment(os.Environ()),
		Shell:       os.Getenv("SHELL"),
		CPU:         cpuid.CPU.BrandName,
	}

	aux.Hostname, _ = os.Hostname()

	if u, err := user.Current(); err == nil {
		aux.User = u.Username

		if g, err := user.LookupGroupId(u.Gid); err == nil {
			aux.Group = g.Name
		} else {
			aux.Group = u.Gid
		}
	}

	aux.Umask = r.umask(ctx, dir)
	aux.Ulimit = r.ulimit(ctx, dir)

	return aux
}

// environment returns the sorted variables that don't match any of the exclude patterns.
func (r *Runner) environment(env []string) string {
	lines := []string{}

	for _, kv := range env {
		key, _, _ := strings.Cut(kv, "=")
		if r.exclude.Match(key) {
			continue
		}

		lines = append(lines, kv)
	}

	sort.Strings(lines)

	if len(lines) == 0 {
		return ""
	}

	return strings.Join(lines, "\n") + "\n"
}

// shellOutput runs a script in a non-login shell and returns its trimmed stdout.
func (r *Runner) shellOutput(ctx context.Context, dir, script string) string {
	cmd := exec.CommandContext(ctx, r.shell, "-c", script)
	cmd.Dir = dir

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		r.logger.Debug().WithError(err).WithField("script", script).Log("Auxiliary command failed")
	}

	return strings.TrimSpace(stdout.String())
}
