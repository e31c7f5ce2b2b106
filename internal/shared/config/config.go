package config

import (
	"os"

	"gopkg.in/ini.v1"

	"lokipool/internal/shared/types"
)

// Default returns a Config populated with the built-in defaults.
func Default() *types.Config {
	return &types.Config{
		ServerConf: types.ServerConf{
			BindHost:       "127.0.0.1",
			BindPort:       1080,
			MaxConnections: 100,
		},
		ProxyConf: types.ProxyConf{
			ProxyFile:           "proxies.txt",
			ProbeTarget:         "www.baidu.com:443",
			TestTimeout:         5,
			HealthCheckInterval: 300,
			RetryTimes:          3,
			DegradedThresholdMs: 1000,
			AutoSwitch:          false,
			SwitchInterval:      300,
			MaxConcurrency:      50,
		},
		LogConf: types.LogConf{
			Level:             "info",
			ShowConnectionLog: true,
			ShowErrorLog:      false,
		},
		FofaConf: types.FofaConf{
			APIURL: "https://fofa.info/api/v1/search/all",
			Query:  `protocol=="socks5" && "Version:5 Method:No Authentication(0x00)" && country="CN"`,
			Size:   100,
		},
		QuakeConf: types.QuakeConf{
			APIURL: "https://quake.360.net/api/v3/search/quake_service",
			Query:  `service:socks5 AND country: "CN" AND response:"No authentication"`,
			Size:   500,
		},
		HunterConf: types.HunterConf{
			APIURL: "https://hunter.qianxin.com/openApi/search",
			Query:  `protocol=="socks5"&&protocol.banner="No authentication"`,
			Size:   1,
		},
	}
}

// Load reads the ini behavior configuration. If the file does not
// exist, a default one is written and the defaults are returned.
func Load(fileName string) (*types.Config, error) {
	cfg := Default()

	if _, err := os.Stat(fileName); os.IsNotExist(err) {
		if err := Save(cfg, fileName); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	iniFile, err := ini.Load(fileName)
	if err != nil {
		return nil, err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration back out as an ini file.
func Save(cfg *types.Config, fileName string) error {
	iniFile := ini.Empty()
	if err := ini.ReflectFrom(iniFile, cfg); err != nil {
		return err
	}
	return iniFile.SaveTo(fileName)
}
