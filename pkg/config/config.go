// Package config loads runtime settings from defaults, an optional YAML
// file, CHROUTER_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/azybler/ch_router/pkg/ch"
	"github.com/azybler/ch_router/pkg/routing"
)

// EnvPrefix prefixes every environment override, e.g. CHROUTER_SERVER_ADDR.
const EnvPrefix = "CHROUTER"

type Config struct {
	Server    Server    `mapstructure:"server"`
	Graph     Graph     `mapstructure:"graph"`
	Prepare   Prepare   `mapstructure:"prepare"`
	Query     Query     `mapstructure:"query"`
	Weighting Weighting `mapstructure:"weighting"`
	Snap      Snap      `mapstructure:"snap"`
	Log       Log       `mapstructure:"log"`
}

type Server struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"gte=0"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	MaxConcurrent   int           `mapstructure:"max_concurrent" validate:"gte=1"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst int     `mapstructure:"rate_burst" validate:"gte=0"`
}

type Graph struct {
	Path string `mapstructure:"path" validate:"required"`
}

type Prepare struct {
	WitnessVisitedLimit int     `mapstructure:"witness_visited_limit" validate:"gte=0"`
	WeightTolerance     float64 `mapstructure:"weight_tolerance" validate:"gte=0"`
	LogInterval         int     `mapstructure:"log_interval" validate:"gte=0"`
	MaxStaleReinserts   int     `mapstructure:"max_stale_reinserts" validate:"gte=0"`
}

type Query struct {
	MaxVisitedNodes int `mapstructure:"max_visited_nodes" validate:"gte=0"`
}

type Weighting struct {
	Name string `mapstructure:"name" validate:"oneof=shortest fastest"`
}

type Snap struct {
	MaxDistanceMeters float64 `mapstructure:"max_distance_meters" validate:"gt=0"`
}

type Log struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

// CH converts the preprocessing section to ch.Config.
func (p Prepare) CH() ch.Config {
	return ch.Config{
		WitnessVisitedLimit: p.WitnessVisitedLimit,
		WeightTolerance:     p.WeightTolerance,
		LogInterval:         p.LogInterval,
		MaxStaleReinserts:   p.MaxStaleReinserts,
	}
}

// RoutingOptions collects the engine settings.
func (c Config) RoutingOptions() routing.Options {
	return routing.Options{
		MaxVisitedNodes: c.Query.MaxVisitedNodes,
		MaxSnapMeters:   c.Snap.MaxDistanceMeters,
	}
}

func setDefaults(v *viper.Viper) {
	def := ch.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_concurrent", runtime.NumCPU()*2)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.rate_limit", 0.0)
	v.SetDefault("server.rate_burst", 20)

	v.SetDefault("graph.path", "graph.bin")

	v.SetDefault("prepare.witness_visited_limit", def.WitnessVisitedLimit)
	v.SetDefault("prepare.weight_tolerance", def.WeightTolerance)
	v.SetDefault("prepare.log_interval", def.LogInterval)
	v.SetDefault("prepare.max_stale_reinserts", def.MaxStaleReinserts)

	v.SetDefault("query.max_visited_nodes", 0)
	v.SetDefault("weighting.name", "fastest")
	v.SetDefault("snap.max_distance_meters", routing.DefaultMaxSnapMeters)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Option adjusts the viper instance before the settings are decoded.
type Option func(v *viper.Viper) error

// BindFlag lets a command-line flag override key when the flag was set.
func BindFlag(key string, f *pflag.Flag) Option {
	return func(v *viper.Viper) error {
		if f == nil {
			return fmt.Errorf("bind %s: no such flag", key)
		}
		return v.BindPFlag(key, f)
	}
}

// Load reads path (skipped when empty), applies overrides and validates the
// result.
func Load(path string, opts ...Option) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fe.Namespace() + " " + fe.Tag()
			}
			return Config{}, fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
