package types

// ServerConf holds the local SOCKS5 listener configuration.
type ServerConf struct {
	BindHost       string `ini:"bind_host"`
	BindPort       int    `ini:"bind_port"`
	MaxConnections int    `ini:"max_connections"`
}

// ProxyConf holds the pool, probing and rotation configuration.
// All intervals and timeouts are in seconds.
type ProxyConf struct {
	ProxyFile           string `ini:"proxy_file"`
	ProbeTarget         string `ini:"probe_target"`
	TestTimeout         int    `ini:"test_timeout"`
	HealthCheckInterval int    `ini:"health_check_interval"`
	RetryTimes          int    `ini:"retry_times"`
	DegradedThresholdMs int    `ini:"degraded_threshold_ms"`
	AutoSwitch          bool   `ini:"auto_switch"`
	SwitchInterval      int    `ini:"switch_interval"`
	MaxConcurrency      int    `ini:"max_concurrency"`
}

// LogConf contains logging specific configuration.
type LogConf struct {
	Level             string `ini:"level"`
	ShowConnectionLog bool   `ini:"show_connection_log"`
	ShowErrorLog      bool   `ini:"show_error_log"`
}

// FofaConf configures the FOFA candidate source.
type FofaConf struct {
	Enabled bool   `ini:"switch"`
	APIURL  string `ini:"api_url"`
	Key     string `ini:"key"`
	Query   string `ini:"query"`
	Size    int    `ini:"size"`
}

// QuakeConf configures the Quake candidate source.
type QuakeConf struct {
	Enabled bool   `ini:"switch"`
	APIURL  string `ini:"api_url"`
	Key     string `ini:"key"`
	Query   string `ini:"query"`
	Size    int    `ini:"size"`
}

// HunterConf configures the Hunter candidate source. Size is the
// number of result pages fetched, 100 entries per page.
type HunterConf struct {
	Enabled bool   `ini:"switch"`
	APIURL  string `ini:"api_url"`
	Key     string `ini:"key"`
	Query   string `ini:"query"`
	Size    int    `ini:"size"`
}

// Config is the unified configuration structure mapped from lokipool.ini.
type Config struct {
	ServerConf `ini:"server"`
	ProxyConf  `ini:"proxy"`
	LogConf    `ini:"log"`
	FofaConf   `ini:"fofa"`
	QuakeConf  `ini:"quake"`
	HunterConf `ini:"hunter"`
}
