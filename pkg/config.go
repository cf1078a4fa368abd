package pkg

import (
	"strconv"
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"
)

// ConfigString reads key from config, falling back to def when the config is
// nil or the value is blank.
func ConfigString(config *aqm.Config, key, def string) string {
	if config == nil {
		return def
	}
	v, _ := config.GetString(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func ConfigInt(config *aqm.Config, key string, def int) int {
	v := ConfigString(config, key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func ConfigDuration(config *aqm.Config, key string, def time.Duration) time.Duration {
	v := ConfigString(config, key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func ConfigBool(config *aqm.Config, key string, def bool) bool {
	v := ConfigString(config, key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
