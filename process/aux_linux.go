package process

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const rlimInfinity = ^uint64(0)

type rlimit struct {
	name     string
	unit     string
	flag     string
	resource int
	divisor  uint64
}

var rlimits = []rlimit{
	{"core file size", "blocks", "-c", unix.RLIMIT_CORE, 512},
	{"data seg size", "kbytes", "-d", unix.RLIMIT_DATA, 1024},
	{"scheduling priority", "", "-e", unix.RLIMIT_NICE, 1},
	{"file size", "blocks", "-f", unix.RLIMIT_FSIZE, 512},
	{"pending signals", "", "-i", unix.RLIMIT_SIGPENDING, 1},
	{"max locked memory", "kbytes", "-l", unix.RLIMIT_MEMLOCK, 1024},
	{"max memory size", "kbytes", "-m", unix.RLIMIT_RSS, 1024},
	{"open files", "", "-n", unix.RLIMIT_NOFILE, 1},
	{"POSIX message queues", "bytes", "-q", unix.RLIMIT_MSGQUEUE, 1},
	{"real-time priority", "", "-r", unix.RLIMIT_RTPRIO, 1},
	{"stack size", "kbytes", "-s", unix.RLIMIT_STACK, 1024},
	{"cpu time", "seconds", "-t", unix.RLIMIT_CPU, 1},
	{"max user processes", "", "-u", unix.RLIMIT_NPROC, 1},
	{"virtual memory", "kbytes", "-v", unix.RLIMIT_AS, 1024},
	{"file locks", "", "-x", unix.RLIMIT_LOCKS, 1},
}

// ulimit formats the soft limits of the current process like the shell
// builtin `ulimit -a`. The command inherits these limits.
func (r *Runner) ulimit(ctx context.Context, dir string) string {
	var b strings.Builder

	for _, l := range rlimits {
		var lim unix.Rlimit

		value := "unknown"

		if err := unix.Getrlimit(l.resource, &lim); err == nil {
			if lim.Cur == rlimInfinity {
				value = "unlimited"
			} else {
				value = strconv.FormatUint(lim.Cur/l.divisor, 10)
			}
		}

		label := "(" + l.flag + ")"
		if len(l.unit) != 0 {
			label = "(" + l.unit + ", " + l.flag + ")"
		}

		fmt.Fprintf(&b, "%-25s%-16s%s\n", l.name, label, value)
	}

	return b.String()
}

// umask reads the mask from the process status. Reading it with umask(2)
// would require to change it.
func (r *Runner) umask(ctx context.Context, dir string) string {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return r.shellOutput(ctx, dir, "umask")
	}

	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if value, ok := strings.CutPrefix(scanner.Text(), "Umask:"); ok {
			return strings.TrimSpace(value)
		}
	}

	return r.shellOutput(ctx, dir, "umask")
}
