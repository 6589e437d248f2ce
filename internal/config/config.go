// Package config loads docexec settings from defaults, an optional config
// file and DOCEXEC_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable: server.addr is read from
// DOCEXEC_SERVER_ADDR.
const EnvPrefix = "DOCEXEC"

type Config struct {
	Server        Server        `mapstructure:"server"`
	Execution     Execution     `mapstructure:"execution"`
	Schema        Schema        `mapstructure:"schema"`
	DocumentCache DocumentCache `mapstructure:"document_cache"`
	Backend       Backend       `mapstructure:"backend"`
	Fixture       Fixture       `mapstructure:"fixture"`
	Log           Log           `mapstructure:"log"`
	Otel          Otel          `mapstructure:"otel"`
}

type Server struct {
	Addr            string        `mapstructure:"addr"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Pretty          bool          `mapstructure:"pretty"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	MetadataHeaders []string      `mapstructure:"metadata_headers"`
	Introspection   bool          `mapstructure:"introspection"`
}

type Execution struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	MaxDepth       int           `mapstructure:"max_depth"`
}

type Schema struct {
	Path string `mapstructure:"path"`
}

type DocumentCache struct {
	Size int `mapstructure:"size"`
}

// Backend configures the gRPC resolver services. Endpoints are
// "Service=host:port" entries; Services are "ObjectType=Service" routes.
type Backend struct {
	Endpoints           []string      `mapstructure:"endpoints"`
	Services            []string      `mapstructure:"services"`
	MaxConnsPerEndpoint int           `mapstructure:"max_conns_per_endpoint"`
	RPCTimeout          time.Duration `mapstructure:"rpc_timeout"`
}

type Fixture struct {
	Path string `mapstructure:"path"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Otel struct {
	Endpoint string `mapstructure:"endpoint"`
	Service  string `mapstructure:"service"`
}

// SetDefaults registers every key with its default value. Keys without a
// default are invisible to environment lookup.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.pretty", false)
	v.SetDefault("server.max_body_bytes", int64(1<<20))
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.metadata_headers", []string{})
	v.SetDefault("server.introspection", true)

	v.SetDefault("execution.timeout", 5*time.Second)
	v.SetDefault("execution.max_concurrency", 0)
	v.SetDefault("execution.max_depth", 0)

	v.SetDefault("schema.path", "")
	v.SetDefault("document_cache.size", 1000)

	v.SetDefault("backend.endpoints", []string{})
	v.SetDefault("backend.services", []string{})
	v.SetDefault("backend.max_conns_per_endpoint", 2)
	v.SetDefault("backend.rpc_timeout", 3*time.Second)

	v.SetDefault("fixture.path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.service", "docexec")
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (when not empty) into v and returns the validated
// configuration.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Addr != "", "server.addr is required")
	check(c.Server.Timeout >= 0, "server.timeout must not be negative")
	check(c.Server.ShutdownTimeout >= 0, "server.shutdown_timeout must not be negative")
	check(c.Server.MaxBodyBytes >= 0, "server.max_body_bytes must not be negative")
	check(c.Execution.Timeout >= 0, "execution.timeout must not be negative")
	check(c.Execution.MaxConcurrency >= 0, "execution.max_concurrency must not be negative")
	check(c.Execution.MaxDepth >= 0, "execution.max_depth must not be negative")
	check(c.DocumentCache.Size >= 0, "document_cache.size must not be negative")
	check(c.Backend.MaxConnsPerEndpoint > 0, "backend.max_conns_per_endpoint must be positive")
	check(c.Backend.RPCTimeout >= 0, "backend.rpc_timeout must not be negative")

	for _, e := range c.Backend.Endpoints {
		check(isPair(e), "backend.endpoints entry %q is not Service=host:port", e)
	}
	for _, e := range c.Backend.Services {
		check(isPair(e), "backend.services entry %q is not ObjectType=Service", e)
	}
	check(len(c.Backend.Endpoints) == 0 || c.Fixture.Path == "",
		"backend.endpoints and fixture.path are mutually exclusive")

	_, err := zapcore.ParseLevel(c.Log.Level)
	check(err == nil, "log.level %q is not a log level", c.Log.Level)
	switch strings.ToLower(c.Log.Format) {
	case "json", "console", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not json or console", c.Log.Format))
	}
	return errors.Join(errs...)
}

// UsesBackend reports whether fields are resolved by gRPC services.
func (c *Config) UsesBackend() bool { return len(c.Backend.Endpoints) > 0 }

func isPair(s string) bool {
	k, v, ok := strings.Cut(s, "=")
	return ok && strings.TrimSpace(k) != "" && strings.TrimSpace(v) != ""
}
