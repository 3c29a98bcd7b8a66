// Package config loads booster's runtime configuration from environment
// variables, following the two-phase DefaultConfig/LoadFromEnv pattern used
// throughout this codebase: start from hardcoded defaults, then let any
// BOOSTER_* (or legacy SASSPB_*) variable override a field.
package config

import (
	"os"
	"strconv"
)

// PoolConfig controls the execution pool's concurrency ceiling and the
// per-request output buffer size.
type PoolConfig struct {
	MaxConcurrency int `json:"max_concurrency"`
	MaxOutputBytes int `json:"max_output_bytes"`
}

// PostgresConfig controls the relational backend adapter. DSN is left empty
// (adapter disabled) when no env var is configured, matching the original's
// "adapter present but inert" behavior rather than refusing to start.
type PostgresConfig struct {
	DSN     string `json:"dsn"`
	PoolMax int    `json:"pool_max"`
}

// RedisConfig controls the key-value backend adapter.
type RedisConfig struct {
	URL     string `json:"url"`
	PoolMax int    `json:"pool_max"`
}

// WasmtimeConfig exposes the tuning knobs the original passes straight
// through to the wasmtime engine configuration.
type WasmtimeConfig struct {
	TuneDefaults            bool    `json:"tune_defaults"`
	MemoryGuardSize         *uint64 `json:"memory_guard_size,omitempty"`
	MemoryReservation       *uint64 `json:"memory_reservation,omitempty"`
	MemoryReservationGrowth *uint64 `json:"memory_reservation_for_growth,omitempty"`
}

// LoggingConfig controls the operational logger.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// MetricsConfig controls the Prometheus namespace.
type MetricsConfig struct {
	Namespace string `json:"namespace"`
}

// TracingConfig controls the optional OTLP/HTTP exporter.
type TracingConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// Config is booster's complete runtime configuration.
type Config struct {
	WasmPath   string         `json:"wasm_path"`
	ListenAddr string         `json:"listen_addr"`
	Pool       PoolConfig     `json:"pool"`
	Postgres   PostgresConfig `json:"postgres"`
	Redis      RedisConfig    `json:"redis"`
	Wasmtime   WasmtimeConfig `json:"wasmtime"`
	Logging    LoggingConfig  `json:"logging"`
	Metrics    MetricsConfig  `json:"metrics"`
	Tracing    TracingConfig  `json:"tracing"`
}

// DefaultConfig returns booster's configuration with every field at its
// documented default, as if no environment variable were set.
func DefaultConfig() *Config {
	return &Config{
		WasmPath:   "components/target/wasm32-wasip1/debug/",
		ListenAddr: "0.0.0.0:2678",
		Pool: PoolConfig{
			MaxConcurrency: 8,
			MaxOutputBytes: 1 << 20,
		},
		Postgres: PostgresConfig{
			PoolMax: 16,
		},
		Redis: RedisConfig{
			PoolMax: 32,
		},
		Wasmtime: WasmtimeConfig{
			TuneDefaults: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: "booster",
		},
		Tracing: TracingConfig{
			Endpoint: "localhost:4318",
		},
	}
}

// LoadFromEnv applies BOOSTER_* (and the legacy SASSPB_POSTGRES_URL)
// environment variables on top of cfg, returning cfg for chaining.
func LoadFromEnv(cfg *Config) *Config {
	if v := os.Getenv("BOOSTER_PATH"); v != "" {
		cfg.WasmPath = v
	}
	if v := os.Getenv("BOOSTER_POOL_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Pool.MaxConcurrency = n
		}
	}
	if v := os.Getenv("BOOSTER_MAX_OUTPUT_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Pool.MaxOutputBytes = n
		}
	}

	// SASSPB_POSTGRES_URL takes precedence over POSTGRES_URL, matching the
	// original adapter's env lookup order.
	if v := os.Getenv("SASSPB_POSTGRES_URL"); v != "" {
		cfg.Postgres.DSN = v
	} else if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("BOOSTER_PG_POOL_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Postgres.PoolMax = n
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("BOOSTER_REDIS_POOL_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Redis.PoolMax = n
		}
	}

	if v := os.Getenv("BOOSTER_WASMTIME_TUNE_DEFAULTS"); v != "" {
		cfg.Wasmtime.TuneDefaults = !isFalsy(v)
	}
	if v := os.Getenv("BOOSTER_WASMTIME_MEMORY_GUARD_SIZE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Wasmtime.MemoryGuardSize = &n
		}
	}
	if v := os.Getenv("BOOSTER_WASMTIME_MEMORY_RESERVATION"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Wasmtime.MemoryReservation = &n
		}
	}
	if v := os.Getenv("BOOSTER_WASMTIME_MEMORY_RESERVATION_FOR_GROWTH"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Wasmtime.MemoryReservationGrowth = &n
		}
	}

	if v := os.Getenv("BOOSTER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BOOSTER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("BOOSTER_METRICS_NAMESPACE"); v != "" {
		cfg.Metrics.Namespace = v
	}
	if v := os.Getenv("BOOSTER_TRACING_ENABLED"); v != "" {
		cfg.Tracing.Enabled = parseBool(v, cfg.Tracing.Enabled)
	}
	if v := os.Getenv("BOOSTER_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}

	return cfg
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// isFalsy matches the exact disabling set original_source/booster/src/main.rs
// checks for BOOSTER_WASMTIME_TUNE_DEFAULTS: "0", "false", "FALSE", "no", "NO".
// strconv.ParseBool alone would miss "no"/"NO", silently leaving tuning on.
func isFalsy(v string) bool {
	switch v {
	case "0", "false", "FALSE", "no", "NO":
		return true
	default:
		return false
	}
}
