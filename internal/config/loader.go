// Package config provides internal configuration loading utilities.
package config

import (
	"os"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override, e.g. CERTKEEPER_LOG_LEVEL or
// CERTKEEPER_VAULT_KV_MOUNT.
const EnvPrefix = "CERTKEEPER"

// Environment variable names for configuration.
const (
	EnvConfigFile = EnvPrefix + "_CONFIG"
	EnvLogLevel   = EnvPrefix + "_LOG_LEVEL"
	EnvDebug      = EnvPrefix + "_DEBUG"
)

// GetBoolEnv returns a boolean environment variable value with a default.
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// ResolvePath picks the configuration file: an explicit path wins, then
// CERTKEEPER_CONFIG. An empty result means defaults plus environment.
func ResolvePath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv(EnvConfigFile))
}

// EnvKeyReplacer maps nested configuration keys onto environment names.
var EnvKeyReplacer = strings.NewReplacer(".", "_", "-", "_")
