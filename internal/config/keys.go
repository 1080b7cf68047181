package config

import (
	"strconv"
	"strings"
)

// setting binds a snake_case key to a Config field. The CSV file uses the
// key as written; the environment uses DLXT_ plus the upper-cased key.
type setting struct {
	key string
	get func(*Config) string
	set func(*Config, string) error
	// envOnly keys are never read from or written to files.
	envOnly bool
}

var settings = []setting{
	intSetting("parallel", func(c *Config) *int { return &c.Parallel }),
	stringSetting("on_duplicated", func(c *Config) *string { return &c.OnDuplicated }),
	stringSetting("on_unsupported", func(c *Config) *string { return &c.OnUnsupported }),
	boolSetting("keep_archives", func(c *Config) *bool { return &c.KeepArchives }),
	boolSetting("check_content", func(c *Config) *bool { return &c.CheckContent }),
	stringSetting("user_agent", func(c *Config) *string { return &c.UserAgent }),
	stringSetting("proxy_mode", func(c *Config) *string { return &c.ProxyMode }),
	stringSetting("proxy_host", func(c *Config) *string { return &c.ProxyHost }),
	intSetting("proxy_port", func(c *Config) *int { return &c.ProxyPort }),
	stringSetting("proxy_user", func(c *Config) *string { return &c.ProxyUser }),
	envOnly(stringSetting("proxy_password", func(c *Config) *string { return &c.ProxyPassword })),
	stringSetting("no_proxy", func(c *Config) *string { return &c.NoProxy }),
	boolSetting("proxy_warmup", func(c *Config) *bool { return &c.ProxyWarmup }),
	stringSetting("proxy_warmup_url", func(c *Config) *string { return &c.ProxyWarmupURL }),
}

func lookupSetting(key string) (setting, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, s := range settings {
		if s.key == key {
			return s, true
		}
	}
	return setting{}, false
}

func (s setting) envName(prefix string) string {
	return prefix + strings.ToUpper(s.key)
}

func stringSetting(key string, field func(*Config) *string) setting {
	return setting{
		key: key,
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intSetting(key string, field func(*Config) *int) setting {
	return setting{
		key: key,
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*field(c) = n
			return nil
		},
	}
}

func boolSetting(key string, field func(*Config) *bool) setting {
	return setting{
		key: key,
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error { *field(c) = parseBool(v); return nil },
	}
}

func envOnly(s setting) setting {
	s.envOnly = true
	return s
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
