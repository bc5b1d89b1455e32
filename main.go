package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/datarhei/shelllogger/app"
	"github.com/datarhei/shelllogger/app/shelllog"
	"github.com/datarhei/shelllogger/config"
	"github.com/datarhei/shelllogger/config/vars"
	"github.com/datarhei/shelllogger/io/fs"
	"github.com/datarhei/shelllogger/log"

	"github.com/google/gops/agent"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := log.New("ShellLogger").WithOutput(log.NewConsoleWriter(os.Stderr, log.Lwarn, true))

	appendTo := ""
	keepGoing := false
	showVersion := false

	flag.StringVar(&appendTo, "append", "", "continue the session in the given log directory, report, or document")
	flag.BoolVar(&keepGoing, "keep-going", false, "keep running the commands after one has failed")
	flag.BoolVar(&showVersion, "version", false, "print the version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options] command...\n\nEach command is run with the configured shell. Options:\n", app.Name)
		flag.PrintDefaults()
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("%s %s (%s, %s)\n", app.Name, app.Version.String(), app.Arch, app.Compiler)
		return 0
	}

	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	cfg := config.New()

	if configfile := findConfigfile(); len(configfile) != 0 {
		diskfs, err := fs.NewRootedDiskFilesystem(fs.RootedDiskConfig{Root: "/"})
		if err != nil {
			logger.Error().WithError(err).Log("Access disk filesystem failed")
			return 1
		}

		if err := cfg.Load(diskfs, configfile); err != nil {
			logger.Error().WithError(err).Log("Loading configuration failed")
			return 1
		}
	}

	// Merging the config file with the environment variables
	cfg.Merge()
	cfg.Validate(false)

	configlogger := logger.WithComponent("Config")
	cfg.Messages(func(level string, v vars.Variable, message string) {
		l := configlogger.WithFields(log.Fields{
			"variable":    v.Name,
			"value":       v.Value,
			"env":         v.EnvName,
			"description": v.Description,
			"override":    v.Merged,
		})

		switch level {
		case vars.Lwarn:
			l.Warn().Log(message)
		case vars.Lerror:
			l.Error().WithField("error", message).Log("")
		default:
			l.Debug().Log(message)
		}
	})

	if cfg.HasErrors() {
		logger.Error().WithField("error", "Not all variables are set or are valid. Check the error messages above. Bailing out.").Log("")
		return 1
	}

	logger = newLogger(cfg)

	logger.Info().WithFields(app.Fields()).Log("")

	if cfg.Debug.AutoMaxProcs {
		undoMaxprocs, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
			format = strings.TrimPrefix(format, "maxprocs: ")
			logger.Debug().Log(format, args...)
		}))
		if err != nil {
			logger.Warn().Log("%s", err.Error())
		}

		defer undoMaxprocs()
	}

	if len(cfg.Debug.AgentAddress) != 0 {
		if err := agent.Listen(agent.Options{
			Addr:                   cfg.Debug.AgentAddress,
			ReuseSocketAddrAndPort: true,
		}); err != nil {
			logger.Error().WithError(err).Log("Starting gops agent failed")
		}

		defer agent.Close()
	}

	session, err := shelllog.New(shelllog.Config{
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		logger.Error().WithError(err).Log("Setting up the session failed")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, code, err := session.Run(ctx, shelllog.Options{
		Commands:  flag.Args(),
		Append:    appendTo,
		KeepGoing: keepGoing,
	})
	if err != nil {
		logger.Error().WithError(err).Log("Session failed")

		if code == 0 {
			code = 1
		}
	}

	if root != nil && root.Finalized() {
		fmt.Fprintf(os.Stderr, "Report: %s\n", root.ReportFile())
	}

	return code
}

func newLogger(cfg *config.Config) log.Logger {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.Lwarn
	}

	var writer log.Writer

	if cfg.Log.Format == "json" {
		writer = log.NewJSONWriter(os.Stderr, level)
	} else {
		writer = log.NewConsoleWriter(os.Stderr, level, true)
	}

	return log.New("ShellLogger").WithOutput(writer).WithField("session", cfg.ID)
}

// findConfigfile returns the path to the config file. If no path is given
// in the environment variable SHELLLOG_CONFIGFILE, different standard
// locations will be probed:
// - os.UserConfigDir() + /shelllogger/config.json
// - os.UserHomeDir() + /.config/shelllogger/config.json
// An empty path is returned if there is no config file. The configuration
// then consists of the defaults and the environment.
func findConfigfile() string {
	configfile := os.Getenv("SHELLLOG_CONFIGFILE")
	if len(configfile) != 0 {
		if abs, err := filepath.Abs(configfile); err == nil {
			return abs
		}

		return configfile
	}

	locations := []string{}

	if dir, err := os.UserConfigDir(); err == nil {
		locations = append(locations, filepath.Join(dir, "shelllogger", "config.json"))
	}

	if dir, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(dir, ".config", "shelllogger", "config.json"))
	}

	for _, path := range locations {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		if info.IsDir() {
			continue
		}

		return path
	}

	return ""
}
