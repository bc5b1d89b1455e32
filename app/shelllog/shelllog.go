// Package shelllog wires the configuration into a runner, a store, and a
// log tree, and runs a list of commands as one session.
package shelllog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/datarhei/shelllogger/config"
	"github.com/datarhei/shelllogger/io/fs"
	"github.com/datarhei/shelllogger/log"
	"github.com/datarhei/shelllogger/logbook"
	"github.com/datarhei/shelllogger/process"
	"github.com/datarhei/shelllogger/psutil"
)

type Config struct {
	Config *config.Config
	PSUtil psutil.Util // Source of the host statistics. Defaults to the host if metrics are configured.
	Stdout io.Writer   // Defaults to os.Stdout.
	Stderr io.Writer   // Defaults to os.Stderr.
	Logger log.Logger
}

// Session is one run of the app.
type Session struct {
	config *config.Config
	runner *process.Runner
	store  logbook.Store
	stdout io.Writer
	logger log.Logger
}

// Options for Run.
type Options struct {
	Commands  []string // Shell commands, run in this order.
	Append    string   // Path to a prior session to continue. Empty for a new session.
	KeepGoing bool     // Keep running the commands after one has failed.
}

func New(c Config) (*Session, error) {
	if c.Config == nil {
		return nil, fmt.Errorf("no configuration provided")
	}

	s := &Session{
		config: c.Config,
		stdout: c.Stdout,
		logger: c.Logger,
	}

	if s.stdout == nil {
		s.stdout = os.Stdout
	}

	stderr := c.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	if s.logger == nil {
		s.logger = log.New("")
	}

	cfg := s.config

	util := c.PSUtil
	if util == nil && len(cfg.Stats.Metrics) != 0 {
		u, err := psutil.New("")
		if err != nil {
			s.logger.Warn().WithError(err).Log("Host statistics are not available, commands will run without sampling")
		} else {
			util = u
		}
	}

	runner, err := process.New(process.Config{
		Shell:      cfg.Shell.Binary,
		Login:      cfg.Shell.Login,
		PSUtil:     util,
		EnvExclude: cfg.Env.Exclude,
		Stdout:     s.stdout,
		Stderr:     stderr,
		Logger:     s.logger.WithComponent("Runner"),
	})
	if err != nil {
		return nil, err
	}

	s.runner = runner

	store, err := s.newStore()
	if err != nil {
		return nil, err
	}

	s.store = store

	return s, nil
}

func (s *Session) newStore() (logbook.Store, error) {
	logger := s.logger.WithComponent("Store")

	disk, err := fs.NewRootedDiskFilesystem(fs.RootedDiskConfig{
		Name:   "disk",
		Root:   "/",
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	mirrors := []fs.Filesystem{}

	if s3 := s.config.Storage.S3; s3.Enable {
		s3fs, err := fs.NewS3Filesystem(fs.S3Config{
			Name:            "s3",
			Endpoint:        s3.Endpoint,
			AccessKeyID:     s3.AccessKeyID,
			SecretAccessKey: s3.SecretAccessKey,
			Region:          s3.Region,
			Bucket:          s3.Bucket,
			Prefix:          s3.Prefix,
			UseSSL:          s3.UseSSL,
			Logger:          logger.WithField("bucket", s3.Bucket),
		})
		if err != nil {
			return nil, fmt.Errorf("s3 storage: %w", err)
		}

		mirrors = append(mirrors, s3fs)
	}

	return logbook.NewStore(logbook.StoreConfig{
		Filesystem: disk,
		Mirrors:    mirrors,
		Logger:     logger,
	})
}

func (s *Session) open(appendTo string) (*logbook.Node, error) {
	cfg := s.config

	c := logbook.Config{
		LogDir:       cfg.LogDir,
		StreamPrefix: cfg.Time.StreamPrefix,
		LoginShell:   cfg.Shell.Login,
		Runner:       s.runner,
		Store:        s.store,
		Stdout:       s.stdout,
		Logger:       s.logger.WithComponent("Logbook"),
	}

	if len(appendTo) != 0 {
		return logbook.Append(appendTo, c)
	}

	return logbook.New(cfg.Name, c)
}

// Run runs the commands in one session and finalizes it. The returned code
// is the return code of the last failed command, or 0 if all succeeded.
// Without KeepGoing the first failed command ends the session. A cancelled
// context ends the session after the current command.
func (s *Session) Run(ctx context.Context, o Options) (*logbook.Node, int, error) {
	if len(o.Commands) == 0 {
		return nil, 0, fmt.Errorf("no commands given")
	}

	root, err := s.open(o.Append)
	if err != nil {
		return nil, 0, err
	}

	cfg := s.config
	code := 0

	var runErr error

	for _, command := range o.Commands {
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}

		result, err := root.Log(ctx, command, process.Options{
			Command:         command,
			Stats:           cfg.Stats.Metrics,
			Interval:        time.Duration(cfg.Stats.IntervalMS) * time.Millisecond,
			Trace:           cfg.Trace.Tool,
			TraceExpression: cfg.Trace.Expression,
			TraceSummary:    cfg.Trace.Summary,
			LiveStdout:      cfg.Run.LiveStdout,
			LiveStderr:      cfg.Run.LiveStderr,
			ReturnInfo:      cfg.Run.ReturnInfo,
			Verbose:         cfg.Run.Verbose,
			KeepStdin:       cfg.Run.KeepStdin,
		})
		if err != nil {
			runErr = err
			break
		}

		if result.ReturnCode != 0 {
			code = result.ReturnCode

			s.logger.Warn().WithFields(log.Fields{
				"command":     command,
				"return_code": result.ReturnCode,
			}).Log("Command failed")

			if !o.KeepGoing {
				break
			}
		}
	}

	if err := root.Finalize(); err != nil {
		return root, code, errors.Join(runErr, err)
	}

	s.logger.Info().WithFields(log.Fields{
		"report":   root.ReportFile(),
		"document": root.DocumentFile(),
	}).Log("Session finalized")

	return root, code, runErr
}
