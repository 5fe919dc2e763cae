// Package utils holds the environment helpers the server wiring reads its
// configuration through. Missing or unparseable values fall back to the
// given default; the lookup outcome is logged at debug level.
package utils

import (
	"os"
	"strconv"

	"github.com/yungbote/voicenotes-backend/internal/logger"
)

func GetEnv(key, defaultVal string, log *logger.Logger) string {
	if log != nil {
		log = log.With("env_var", key)
	}
	val, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("Environment variable not set, using default", "default", defaultVal)
		}
		return defaultVal
	}
	if log != nil {
		log.Debug("Environment variable set", "value", val)
	}
	return val
}

func GetEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.With("env_var", key).Debug("Environment variable not set, using default", "default", defaultVal)
		}
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		if log != nil {
			log.With("env_var", key).Debug("Environment variable is not an integer, using default", "value", raw, "default", defaultVal, "error", err)
		}
		return defaultVal
	}
	return n
}
