// Package config implements types for handling the configuration for the app.
package config

import (
	"fmt"
	"slices"

	"github.com/datarhei/shelllogger/config/value"
	"github.com/datarhei/shelllogger/config/vars"
	"github.com/datarhei/shelllogger/encoding/json"
	"github.com/datarhei/shelllogger/io/fs"
	"github.com/datarhei/shelllogger/logbook"
	"github.com/datarhei/shelllogger/stats"
	"github.com/datarhei/shelllogger/trace"

	haikunator "github.com/atrox/haikunatorgo/v2"
	"github.com/google/uuid"
)

// DefaultEnvExclude are the environment variables that are left out of the
// snapshot of each command by default.
var DefaultEnvExclude = []string{
	"LS_COLORS",
	"LESS_TERMCAP_*",
	"_",
	"OLDPWD",
	"SHLVL",
	"TERMCAP",
}

// Config is a wrapper for Data
type Config struct {
	vars vars.Variables

	Data
}

// New returns a Config which is initialized with its default values
func New() *Config {
	config := &Config{}

	config.init()

	return config
}

// Clone returns a deep copy of the Config.
func (d *Config) Clone() *Config {
	data := New()

	data.Data = d.Data

	data.Stats.Metrics = slices.Clone(d.Stats.Metrics)
	data.Env.Exclude = slices.Clone(d.Env.Exclude)

	data.vars.LookupEnv = d.vars.LookupEnv
	data.vars.Transfer(&d.vars)

	return data
}

func (d *Config) init() {
	d.vars.Register(value.NewInt64(&d.Version, 1), "version", "", nil, "Configuration file layout version", true, false)
	d.vars.Register(value.NewString(&d.ID, uuid.New().String()), "id", "SHELLLOG_ID", nil, "ID for this session", true, false)
	d.vars.Register(value.NewString(&d.Name, haikunator.New().Haikunate()), "name", "SHELLLOG_NAME", nil, "A human readable name for this session", true, false)

	// Log
	d.vars.Register(value.NewEnum(&d.Log.Level, "warn", "debug", "info", "warn", "error", "silent"), "log.level", "SHELLLOG_LOG_LEVEL", nil, "Loglevel: silent, error, warn, info, debug", false, false)
	d.vars.Register(value.NewEnum(&d.Log.Format, "console", "console", "json"), "log.format", "SHELLLOG_LOG_FORMAT", nil, "Log format: console, json", false, false)

	// Paths
	d.vars.Register(value.NewDir(&d.LogDir, "."), "logdir", "SHELLLOG_LOGDIR", nil, "Directory for the logs, created if it doesn't exist", true, false)

	// Shell
	d.vars.Register(value.NewExec(&d.Shell.Binary, "/bin/sh"), "shell.binary", "SHELLLOG_SHELL_BINARY", []string{"SHELLLOG_SHELL"}, "Path to the shell", true, false)
	d.vars.Register(value.NewBool(&d.Shell.Login, false), "shell.login", "SHELLLOG_SHELL_LOGIN", nil, "Start the shell as a login shell", false, false)

	// Stats
	d.vars.Register(value.NewStringList(&d.Stats.Metrics, []string{}, ","), "stats.metrics", "SHELLLOG_STATS_METRICS", nil, "Comma separated list of metrics to sample while a command runs", false, false)
	d.vars.Register(value.NewInt64(&d.Stats.IntervalMS, 0), "stats.interval_ms", "SHELLLOG_STATS_INTERVAL_MS", nil, "Sampling interval in milliseconds, 0 for the default of one second", false, false)

	// Trace
	d.vars.Register(value.NewEnum(&d.Trace.Tool, "", append([]string{""}, trace.NewRegistry().Names()...)...), "trace.tool", "SHELLLOG_TRACE_TOOL", nil, "Tracer for the commands, empty for none", false, false)
	d.vars.Register(value.NewString(&d.Trace.Expression, ""), "trace.expression", "SHELLLOG_TRACE_EXPRESSION", nil, "Filter expression for the tracer", false, false)
	d.vars.Register(value.NewBool(&d.Trace.Summary, false), "trace.summary", "SHELLLOG_TRACE_SUMMARY", nil, "Let the tracer only write a summary", false, false)

	// Run
	d.vars.Register(value.NewBool(&d.Run.ReturnInfo, false), "run.return_info", "SHELLLOG_RUN_RETURN_INFO", nil, "Keep the output of the commands in the document", false, false)
	d.vars.Register(value.NewBool(&d.Run.LiveStdout, true), "run.live_stdout", "SHELLLOG_RUN_LIVE_STDOUT", nil, "Print stdout of the commands while they run", false, false)
	d.vars.Register(value.NewBool(&d.Run.LiveStderr, true), "run.live_stderr", "SHELLLOG_RUN_LIVE_STDERR", nil, "Print stderr of the commands while they run", false, false)
	d.vars.Register(value.NewBool(&d.Run.KeepStdin, false), "run.keep_stdin", "SHELLLOG_RUN_KEEP_STDIN", nil, "Connect stdin to the commands", false, false)
	d.vars.Register(value.NewBool(&d.Run.Verbose, false), "run.verbose", "SHELLLOG_RUN_VERBOSE", nil, "Print each command before running it", false, false)

	// Environment
	d.vars.Register(value.NewGlobList(&d.Env.Exclude, slices.Clone(DefaultEnvExclude), ","), "env.exclude", "SHELLLOG_ENV_EXCLUDE", nil, "Comma separated list of glob patterns for environment variables to leave out of the snapshot", false, false)

	// Time
	d.vars.Register(value.NewStrftime(&d.Time.StreamPrefix, logbook.DefaultStreamPrefix), "time.stream_prefix", "SHELLLOG_TIME_STREAM_PREFIX", nil, "Strftime pattern for the name of the stream directory", true, false)

	// Storage (S3)
	d.vars.Register(value.NewBool(&d.Storage.S3.Enable, false), "storage.s3.enable", "SHELLLOG_STORAGE_S3_ENABLE", nil, "Mirror the documents to an S3 bucket", false, false)
	d.vars.Register(value.NewString(&d.Storage.S3.Endpoint, ""), "storage.s3.endpoint", "SHELLLOG_STORAGE_S3_ENDPOINT", nil, "Host and port of the S3 service", false, false)
	d.vars.Register(value.NewString(&d.Storage.S3.AccessKeyID, ""), "storage.s3.access_key_id", "SHELLLOG_STORAGE_S3_ACCESS_KEY_ID", nil, "Access key for the S3 service", false, false)
	d.vars.Register(value.NewString(&d.Storage.S3.SecretAccessKey, ""), "storage.s3.secret_access_key", "SHELLLOG_STORAGE_S3_SECRET_ACCESS_KEY", nil, "Secret for the access key", false, true)
	d.vars.Register(value.NewString(&d.Storage.S3.Bucket, ""), "storage.s3.bucket", "SHELLLOG_STORAGE_S3_BUCKET", nil, "Bucket for the documents, created if it doesn't exist", false, false)
	d.vars.Register(value.NewString(&d.Storage.S3.Region, ""), "storage.s3.region", "SHELLLOG_STORAGE_S3_REGION", nil, "Region of the bucket", false, false)
	d.vars.Register(value.NewString(&d.Storage.S3.Prefix, ""), "storage.s3.prefix", "SHELLLOG_STORAGE_S3_PREFIX", nil, "Key prefix for the documents, e.g. the host name", false, false)
	d.vars.Register(value.NewBool(&d.Storage.S3.UseSSL, true), "storage.s3.use_ssl", "SHELLLOG_STORAGE_S3_USE_SSL", nil, "Connect to the S3 service with TLS", false, false)

	// Debug
	d.vars.Register(value.NewAddress(&d.Debug.AgentAddress, ""), "debug.agent_address", "SHELLLOG_DEBUG_AGENT_ADDRESS", nil, "Listening address of the gops agent, empty to disable it", false, false)
	d.vars.Register(value.NewBool(&d.Debug.AutoMaxProcs, false), "debug.auto_max_procs", "SHELLLOG_DEBUG_AUTO_MAX_PROCS", nil, "Set GOMAXPROCS according to the CPU quota", false, false)
}

// Merge merges the values of the known environment variables into the configuration
func (d *Config) Merge() {
	d.vars.Merge()
}

// Load reads a JSON configuration file. Values missing in the file keep
// their current value.
func (d *Config) Load(f fs.ReadFilesystem, path string) error {
	data, err := f.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s failed: %w", path, err)
	}

	if err := json.Unmarshal(data, &d.Data); err != nil {
		return fmt.Errorf("parsing %s failed: %w", path, err)
	}

	return nil
}

// Validate validates the current state of the Config for completeness and sanity. Errors are
// written to the log. Use resetLogs to indicate to reset the logs prior validation.
func (d *Config) Validate(resetLogs bool) {
	if resetLogs {
		d.vars.ResetLogs()
	}

	if d.Version != 1 {
		d.vars.Log(vars.Lerror, "version", "unknown configuration layout version")

		return
	}

	d.vars.Validate()

	// Individual sanity checks

	// All requested metrics have to be known
	metrics := stats.NewRegistry().Names()
	for _, name := range d.Stats.Metrics {
		if !slices.Contains(metrics, name) {
			d.vars.Log(vars.Lerror, "stats.metrics", "unknown metric '%s'", name)
		}
	}

	// A negative interval can't be sampled
	if d.Stats.IntervalMS < 0 {
		d.vars.Log(vars.Lerror, "stats.interval_ms", "must be equal or greater than 0")
	}

	// The expression and the summary only apply to a tracer
	if len(d.Trace.Tool) == 0 && (len(d.Trace.Expression) != 0 || d.Trace.Summary) {
		d.vars.Log(vars.Lwarn, "trace.tool", "trace.expression and trace.summary have no effect without a tracer")
	}

	// If S3 is enabled, the endpoint, the bucket and the credentials have to be set
	if d.Storage.S3.Enable {
		if len(d.Storage.S3.Endpoint) == 0 {
			d.vars.Log(vars.Lerror, "storage.s3.endpoint", "must be set if S3 is enabled")
		}

		if len(d.Storage.S3.Bucket) == 0 {
			d.vars.Log(vars.Lerror, "storage.s3.bucket", "must be set if S3 is enabled")
		}

		if len(d.Storage.S3.AccessKeyID) == 0 || len(d.Storage.S3.SecretAccessKey) == 0 {
			d.vars.Log(vars.Lerror, "storage.s3.enable", "storage.s3.access_key_id and storage.s3.secret_access_key must be set")
		}
	}
}

// Messages calls for each log entry the provided callback. The level has the values 'error', 'warn', or 'info'.
// The name is the name of the configuration value, e.g. 'storage.s3.enable'. The message is the log message.
func (d *Config) Messages(logger func(level string, v vars.Variable, message string)) {
	d.vars.Messages(logger)
}

// HasErrors returns whether there are some error messages in the log.
func (d *Config) HasErrors() bool {
	return d.vars.HasErrors()
}

// Overrides returns a list of configuration value names that have been overriden by an environment variable.
func (d *Config) Overrides() []string {
	return d.vars.Overrides()
}

// Variables returns the state of all configuration values.
func (d *Config) Variables() []vars.Variable {
	return d.vars.Describe()
}

// LookupEnv replaces the environment as the source for Merge.
func (d *Config) LookupEnv(lookup func(key string) (string, bool)) {
	d.vars.LookupEnv = lookup
}
