package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type envVar struct {
	name  string
	desc  string
	apply func(*Config, string) error
}

var supportedEnvVars = []envVar{
	{
		// Only here for documentation purposes.  It is handled prior to loading the config.
		name:  "KIRI_CONFIG_PATH",
		desc:  "Sets the path to the config file.  Default: OS-specific config directory",
		apply: func(c *Config, s string) error { return nil },
	},
	{
		name:  "KIRI_CONFIG_GATEWAY_MODE",
		desc:  "How provider requests are sent.  One of `direct` or `relay`.  Default: direct",
		apply: func(c *Config, s string) error { c.Gateway.Mode = s; return nil },
	},
	{
		name:  "KIRI_CONFIG_GATEWAY_RELAY_URL",
		desc:  "Base URL of a `kiri relay` instance.  Default: None",
		apply: func(c *Config, s string) error { c.Gateway.RelayURL = s; return nil },
	},
	{
		name: "KIRI_CONFIG_GATEWAY_TIMEOUT",
		desc: "Provider request timeout as a Go duration.  Default: 30s",
		apply: func(c *Config, s string) error {
			d, err := time.ParseDuration(s)
			if err != nil {
				return err
			}
			c.Gateway.Timeout = d
			return nil
		},
	},
	{
		name: "KIRI_CONFIG_GATEWAY_REQUESTS_PER_SECOND",
		desc: "Outbound provider request rate limit.  Zero disables limiting.  Default: 5",
		apply: func(c *Config, s string) error {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return err
			}
			c.Gateway.RequestsPerSecond = f
			return nil
		},
	},
	{
		name:  "KIRI_CONFIG_GATEWAY_USER_AGENT",
		desc:  "User-Agent sent to providers.  Default: Kiri/<version>",
		apply: func(c *Config, s string) error { c.Gateway.UserAgent = s; return nil },
	},
	{
		name:  "KIRI_CONFIG_PLAYER_TYPE",
		desc:  "Sets the video player type.  Should be one of `mpv` or `native`.  Default: mpv",
		apply: func(c *Config, s string) error { c.Player.Type = s; return nil },
	},
	{
		name:  "KIRI_CONFIG_PLAYER_PATH",
		desc:  "Sets the path to a video player binary.  Default: mpv",
		apply: func(c *Config, s string) error { c.Player.Path = s; return nil },
	},
	{
		name:  "KIRI_CONFIG_PLAYER_ARGS",
		desc:  "Extra arguments passed to the video player.  Default: None",
		apply: func(c *Config, s string) error { c.Player.Args = s; return nil },
	},
	{
		name:  "KIRI_CONFIG_STORE_BACKEND",
		desc:  "Where credentials and favorites are kept.  One of `file`, `sqlite`, `redis`, `memory`.  Default: file",
		apply: func(c *Config, s string) error { c.Store.Backend = s; return nil },
	},
	{
		name:  "KIRI_CONFIG_STORE_PATH",
		desc:  "Directory for the file and sqlite store backends.  Default: OS-specific",
		apply: func(c *Config, s string) error { c.Store.Path = s; return nil },
	},
	{
		name:  "KIRI_CONFIG_STORE_REDIS_ADDR",
		desc:  "Redis address for the redis store backend.  Default: None",
		apply: func(c *Config, s string) error { c.Store.RedisAddr = s; return nil },
	},
	{
		name:  "KIRI_CONFIG_RELAY_LISTEN_ADDR",
		desc:  "Address `kiri relay` listens on.  Default: 127.0.0.1:8089",
		apply: func(c *Config, s string) error { c.Relay.ListenAddr = s; return nil },
	},
	{
		name:  "KIRI_CONFIG_LOGGING_LEVEL",
		desc:  "Sets the logging level.  One of: trace, debug, info, warn, error.  Default: info",
		apply: func(c *Config, s string) error { c.Logging.Level = s; return nil },
	},
	{
		name:  "KIRI_CONFIG_LOGGING_FILE_PATH",
		desc:  "Sets the logging file path.  Default: OS-specific",
		apply: func(c *Config, s string) error { c.Logging.FilePath = s; return nil },
	},
}

func applyEnvVarOverrides(c *Config) error {
	for _, envVar := range supportedEnvVars {
		if value := os.Getenv(envVar.name); value != "" {
			if err := envVar.apply(c, value); err != nil {
				return fmt.Errorf("invalid value for %s: %w", envVar.name, err)
			}
		}
	}
	return nil
}

// EnvHelp renders the supported environment variables, one per line, for `kiri env`.
func EnvHelp() string {
	out := ""
	for _, envVar := range supportedEnvVars {
		out += fmt.Sprintf("%-42s %s\n", envVar.name, envVar.desc)
	}
	return out
}
