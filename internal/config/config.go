// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

// Package config loads aosauth configuration from defaults, a YAML file,
// a dotenv file, the environment and command-line flags, in that order of
// precedence.
package config

import (
	"errors"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/aosauth/aosauth/internal/auth"
	"github.com/aosauth/aosauth/internal/logging"
	"github.com/aosauth/aosauth/internal/xdg"
)

// Storage drivers.
const (
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// EnvPrefix prefixes every namespaced environment variable.
const EnvPrefix = "AOSAUTH_"

// Config is the validated process configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Auth    AuthConfig    `koanf:"auth"`
	Store   StoreConfig   `koanf:"store"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// ServerConfig configures the web listener and cookies.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	BaseURL           string        `koanf:"base_url"`
	CookieSecure      bool          `koanf:"cookie_secure"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Argon2Config mirrors auth.Argon2Params.
type Argon2Config struct {
	Memory  uint32 `koanf:"memory"`
	Time    uint32 `koanf:"time"`
	Threads uint8  `koanf:"threads"`
}

// Params converts to hasher parameters.
func (a Argon2Config) Params() auth.Argon2Params {
	return auth.Argon2Params{Time: a.Time, Memory: a.Memory, Threads: a.Threads}
}

// AuthConfig configures hashing and sessions.
type AuthConfig struct {
	HashKey             string        `koanf:"hash_key"`
	SessionLifetime     time.Duration `koanf:"session_lifetime"`
	Argon2              Argon2Config  `koanf:"argon2"`
	MaxConcurrentHashes int           `koanf:"max_concurrent_hashes"`
}

// BoltConfig configures the embedded engine.
type BoltConfig struct {
	Path string `koanf:"path"`
}

// PostgresConfig configures the postgres engine.
type PostgresConfig struct {
	DSN string `koanf:"dsn"`
}

// RedisConfig configures the redis engine.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

// StoreConfig selects and configures the storage engine.
type StoreConfig struct {
	Driver       string         `koanf:"driver"`
	DatabaseName string         `koanf:"database_name"`
	Bolt         BoltConfig     `koanf:"bolt"`
	Postgres     PostgresConfig `koanf:"postgres"`
	Redis        RedisConfig    `koanf:"redis"`
}

// BoltPath returns the configured bolt file, defaulting to
// <XDG data dir>/<database_name>.db.
func (s StoreConfig) BoltPath() (string, error) {
	if s.Bolt.Path != "" {
		return s.Bolt.Path, nil
	}
	return xdg.DatabasePath(s.DatabaseName)
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// MetricsConfig configures the observability listener. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// defaults holds the lowest-precedence values.
func defaults() map[string]any {
	argon := auth.DefaultArgon2Params()
	return map[string]any{
		"server.host":                "127.0.0.1",
		"server.port":                8080,
		"server.base_url":            "http://127.0.0.1:8080",
		"server.cookie_secure":       false,
		"server.read_header_timeout": 10 * time.Second,
		"auth.hash_key":              "",
		"auth.session_lifetime":      auth.DefaultSessionLifetime,
		"auth.argon2.memory":         argon.Memory,
		"auth.argon2.time":           argon.Time,
		"auth.argon2.threads":        argon.Threads,
		"auth.max_concurrent_hashes": 0,
		"store.driver":               DriverBolt,
		"store.database_name":        "identity",
		"store.bolt.path":            "",
		"store.postgres.dsn":         "",
		"store.redis.addr":           "127.0.0.1:6379",
		"store.redis.password":       "",
		"store.redis.db":             0,
		"store.redis.prefix":         "aosauth",
		"log.format":                 "json",
		"log.level":                  "info",
		"metrics.addr":               "127.0.0.1:9100",
	}
}

// legacyEnv maps un-prefixed variable names onto keys. The namespaced
// AOSAUTH_* form wins when both are set. Empty variables are ignored.
var legacyEnv = map[string]string{
	"HASH_KEY":      "auth.hash_key",
	"BASE_URL":      "server.base_url",
	"HOST_IP":       "server.host",
	"PORT":          "server.port",
	"DATABASE_NAME": "store.database_name",
}

// prefixedEnv maps AOSAUTH_STORE_REDIS_ADDR to store.redis.addr. Underscores
// are ambiguous (store.redis.addr vs auth.hash_key), so names come from the
// known keys rather than from splitting the variable.
func prefixedEnv() map[string]string {
	names := make(map[string]string)
	for key := range defaults() {
		names[EnvPrefix+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))] = key
	}
	return names
}

// envMapper returns a koanf env callback that keeps only the named,
// non-empty variables.
func envMapper(names map[string]string) func(string, string) (string, any) {
	return func(name, value string) (string, any) {
		key, ok := names[name]
		if !ok || value == "" {
			return "", nil
		}
		return key, value
	}
}

// dotenvValues maps the variables of an env file onto keys, namespaced
// names over legacy ones.
func dotenvValues(vars map[string]string) map[string]any {
	out := make(map[string]any)
	for _, mapper := range []func(string, string) (string, any){envMapper(legacyEnv), envMapper(prefixedEnv())} {
		for name, value := range vars {
			if key, v := mapper(name, value); key != "" {
				out[key] = v
			}
		}
	}
	return out
}

// flagKeys maps command-line flag names to keys.
var flagKeys = map[string]string{
	"host":          "server.host",
	"port":          "server.port",
	"base-url":      "server.base_url",
	"cookie-secure": "server.cookie_secure",
	"driver":        "store.driver",
	"database-name": "store.database_name",
	"bolt-path":     "store.bolt.path",
	"postgres-dsn":  "store.postgres.dsn",
	"redis-addr":    "store.redis.addr",
	"log-format":    "log.format",
	"log-level":     "log.level",
	"metrics-addr":  "metrics.addr",
}

// DefaultEnvFile is read when present. Its variables rank below the
// process environment.
const DefaultEnvFile = "envs/local.env"

// RegisterFlags adds the overridable settings to flags. Flag defaults are
// informational; unset flags never override the file or environment.
func RegisterFlags(flags *pflag.FlagSet) {
	d := defaults()
	flags.String("host", d["server.host"].(string), "web listen host")
	flags.Int("port", d["server.port"].(int), "web listen port")
	flags.String("base-url", d["server.base_url"].(string), "public base URL")
	flags.Bool("cookie-secure", false, "mark the session cookie Secure")
	flags.String("driver", DriverBolt, "storage driver: bolt, postgres or redis")
	flags.String("database-name", d["store.database_name"].(string), "database name for the bolt driver")
	flags.String("bolt-path", "", "bolt database file (default under the XDG data directory)")
	flags.String("postgres-dsn", "", "PostgreSQL connection string")
	flags.String("redis-addr", d["store.redis.addr"].(string), "Redis address")
	flags.String("log-format", d["log.format"].(string), "log format: json or text")
	flags.String("log-level", d["log.level"].(string), "log level: debug, info, warn or error")
	flags.String("metrics-addr", d["metrics.addr"].(string), "observability listen address (empty disables)")
	flags.String("env-file", DefaultEnvFile, "dotenv file with HASH_KEY, PORT or AOSAUTH_* variables")
}

// envFile returns the dotenv file to read and whether it must exist.
func envFile(flags *pflag.FlagSet) (string, bool) {
	if flags != nil {
		if f := flags.Lookup("env-file"); f != nil {
			return f.Value.String(), f.Changed
		}
	}
	return DefaultEnvFile, false
}

// Load reads configuration. path may be empty to skip the file. flags may
// be nil; only flags the user changed override earlier sources.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_DEFAULTS_FAILED").Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").With("path", path).Wrap(err)
		}
	}

	if name, required := envFile(flags); name != "" {
		vars, err := godotenv.Read(name)
		switch {
		case err == nil:
			if err := k.Load(confmap.Provider(dotenvValues(vars), "."), nil); err != nil {
				return nil, oops.Code("CONFIG_ENV_FILE_FAILED").With("path", name).Wrap(err)
			}
		case required || !errors.Is(err, fs.ErrNotExist):
			return nil, oops.Code("CONFIG_ENV_FILE_FAILED").With("path", name).Wrap(err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envMapper(legacyEnv)), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envMapper(prefixedEnv())), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be expressed in types.
func (c *Config) Validate() error {
	invalid := func(key, reason string) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s: %s", key, reason)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return invalid("server.port", "must be between 0 and 65535")
	}
	if c.Auth.SessionLifetime <= 0 {
		return invalid("auth.session_lifetime", "must be positive")
	}
	if c.Auth.Argon2.Memory == 0 || c.Auth.Argon2.Time == 0 || c.Auth.Argon2.Threads == 0 {
		return invalid("auth.argon2", "memory, time and threads must be positive")
	}
	if c.Auth.MaxConcurrentHashes < 0 {
		return invalid("auth.max_concurrent_hashes", "must not be negative")
	}
	if c.Store.DatabaseName == "" || strings.ContainsAny(c.Store.DatabaseName, `/\`) {
		return invalid("store.database_name", "must be a plain file name")
	}
	switch c.Store.Driver {
	case DriverBolt:
	case DriverPostgres:
		if c.Store.Postgres.DSN == "" {
			return invalid("store.postgres.dsn", "required for the postgres driver")
		}
	case DriverRedis:
		if c.Store.Redis.Addr == "" {
			return invalid("store.redis.addr", "required for the redis driver")
		}
	default:
		return invalid("store.driver", "must be bolt, postgres or redis")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "must be json or text")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "must be debug, info, warn or error")
	}
	return nil
}

// RequireHashKey reports an error when no usable hash key is configured.
// Only commands that hash or verify passwords need one.
func (c *Config) RequireHashKey() error {
	if len(c.Auth.HashKey) < auth.MinHashKeyLen {
		return oops.Code("CONFIG_INVALID").
			With("key", "auth.hash_key").
			With("min_length", auth.MinHashKeyLen).
			Errorf("auth.hash_key must be set to at least %d bytes (see `aosauth genkey`)", auth.MinHashKeyLen)
	}
	return nil
}
