package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

func defaultEnviron() []string { return os.Environ() }

// ErrEmptyConfigPath defines a sentinel error for an empty config path.
var ErrEmptyConfigPath = errors.New("empty configuration file path")

const envAPIKeyPrefix = "API_KEY_"

// ParseConfig attempts to read and parse configuration from the given
// file path, applying environment variable overrides and defaults.
func ParseConfig(configPath string) (Config, error) {
	var cfg Config

	if configPath == "" {
		return cfg, ErrEmptyConfigPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	decodeHook := mapstructure.ComposeDecodeHookFunc(
		stringToPairsHookFunc(),
		stringToAPIKeysHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.APIKeys = mergeEnvAPIKeys(cfg.APIKeys)
	cfg.setDefaults()
	// An explicit drift-limit of 0 disables the drift guard; only an
	// unset drift-limit takes the default.
	if v.IsSet("drift-limit") && v.GetFloat64("drift-limit") == 0 {
		cfg.DriftLimit = 0
	}

	return cfg, cfg.Validate()
}

// mergeEnvAPIKeys layers API_KEY_<UPPERNAME> environment variables on
// top of whatever api-keys were configured in the file, per §6.
func mergeEnvAPIKeys(existing map[string]string) map[string]string {
	keys := make(map[string]string, len(existing))
	for k, v := range existing {
		keys[strings.ToLower(k)] = v
	}

	for _, env := range environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if !strings.HasPrefix(parts[0], envAPIKeyPrefix) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(parts[0], envAPIKeyPrefix))
		if parts[1] != "" {
			keys[name] = parts[1]
		}
	}

	return keys
}

var pairSliceType = reflect.TypeOf([]Pair{})

// stringToPairsHookFunc decodes a comma-separated "base/quote,base/quote"
// string into a []Pair, so pairs can be supplied as a flag or env var
// override in addition to a structured config list.
func stringToPairsHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != pairSliceType {
			return data, nil
		}

		raw := data.(string)
		if raw == "" {
			return []Pair{}, nil
		}

		entries := strings.Split(raw, ",")
		pairs := make([]Pair, 0, len(entries))
		for _, e := range entries {
			parts := strings.SplitN(strings.TrimSpace(e), "/", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("invalid pair %q, expected base/quote", e)
			}
			pairs = append(pairs, Pair{Base: parts[0], Quote: parts[1]})
		}
		return pairs, nil
	}
}

var apiKeysMapType = reflect.TypeOf(map[string]string{})

// stringToAPIKeysHookFunc decodes a comma-separated "source=key,source=key"
// string into a map[string]string.
func stringToAPIKeysHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != apiKeysMapType {
			return data, nil
		}

		raw := data.(string)
		keys := make(map[string]string)
		if raw == "" {
			return keys, nil
		}

		for _, e := range strings.Split(raw, ",") {
			parts := strings.SplitN(strings.TrimSpace(e), "=", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("invalid api-key entry %q, expected source=key", e)
			}
			keys[strings.ToLower(parts[0])] = parts[1]
		}
		return keys, nil
	}
}

// environ is a seam over os.Environ for testability.
var environ = defaultEnviron
