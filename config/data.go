package config

// Data is the actual configuration data for the app
type Data struct {
	Version int64  `json:"version" jsonschema:"minimum=1,maximum=1"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Log     struct {
		Level  string `json:"level" enums:"debug,info,warn,error,silent" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,enum=silent"`
		Format string `json:"format" enums:"console,json" jsonschema:"enum=console,enum=json"`
	} `json:"log"`
	LogDir string `json:"logdir"`
	Shell  struct {
		Binary string `json:"binary"`
		Login  bool   `json:"login"`
	} `json:"shell"`
	Stats struct {
		Metrics    []string `json:"metrics"`
		IntervalMS int64    `json:"interval_ms"`
	} `json:"stats"`
	Trace struct {
		Tool       string `json:"tool"`
		Expression string `json:"expression"`
		Summary    bool   `json:"summary"`
	} `json:"trace"`
	Run struct {
		ReturnInfo bool `json:"return_info"`
		LiveStdout bool `json:"live_stdout"`
		LiveStderr bool `json:"live_stderr"`
		KeepStdin  bool `json:"keep_stdin"`
		Verbose    bool `json:"verbose"`
	} `json:"run"`
	Env struct {
		Exclude []string `json:"exclude"`
	} `json:"env"`
	Time struct {
		StreamPrefix string `json:"stream_prefix"`
	} `json:"time"`
	Storage struct {
		S3 struct {
			Enable          bool   `json:"enable"`
			Endpoint        string `json:"endpoint"`
			AccessKeyID     string `json:"access_key_id"`
			SecretAccessKey string `json:"secret_access_key"`
			Bucket          string `json:"bucket"`
			Region          string `json:"region"`
			Prefix          string `json:"prefix"`
			UseSSL          bool   `json:"use_ssl"`
		} `json:"s3"`
	} `json:"storage"`
	Debug struct {
		AgentAddress string `json:"agent_address"`
		AutoMaxProcs bool   `json:"auto_max_procs"`
	} `json:"debug"`
}
