// Package config loads per-process EDGELESS configuration from the
// environment, the same getEnv*/Validate shape the teacher's common/config
// uses — one struct per concern instead of one struct per SQL table, since
// no EDGELESS process owns a relational database (SPEC_FULL.md §10).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all process configuration shared by every EDGELESS binary.
type Config struct {
	Service   ServiceConfig
	Node      NodeConfig
	Register  RegisterConfig
	Proxy     ProxyConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds process-wide settings.
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// NodeConfig holds node-agent and domain-orchestrator tuning (§4.3, §4.4).
type NodeConfig struct {
	RefreshPeriod     time.Duration
	ReconcileInterval time.Duration
	CallTimeout       time.Duration
	RedundancyTarget  int
	PlacementStrategy string // "random" or "round_robin"
	StateDir          string
	MemSizeMiB        int
	DiskSizeMiB       int
	CoapAddr          string
	EnableCoap        bool
}

// RegisterConfig holds node/domain register sweep tuning (§4.3, §4.6).
type RegisterConfig struct {
	SweepInterval time.Duration
}

// ProxyConfig holds the proxy's Redis + HTTP surface settings (§4.7).
type ProxyConfig struct {
	RedisAddr string
	RedisDB   int
	HTTPPort  int
}

// TelemetryConfig holds observability settings (§2).
type TelemetryConfig struct {
	EnablePprof   bool
	PprofPort     int
	EnableMetrics bool
	MetricsPort   int
}

// Load loads configuration from environment variables for the named
// process ("node", "orchestrator", "controller", "proxy", ...).
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Node: NodeConfig{
			RefreshPeriod:     getEnvDuration("REFRESH_PERIOD", 2*time.Second),
			ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 5*time.Second),
			CallTimeout:       getEnvDuration("CALL_TIMEOUT", 10*time.Second),
			RedundancyTarget:  getEnvInt("REDUNDANCY_TARGET", 1),
			PlacementStrategy: getEnv("PLACEMENT_STRATEGY", "round_robin"),
			StateDir:          getEnv("STATE_DIR", "/var/lib/edgeless/state"),
			MemSizeMiB:        getEnvInt("NODE_MEM_SIZE_MIB", 4096),
			DiskSizeMiB:       getEnvInt("NODE_DISK_SIZE_MIB", 20480),
			CoapAddr:          getEnv("COAP_ADDR", ":7780"),
			EnableCoap:        getEnvBool("ENABLE_COAP", false),
		},
		Register: RegisterConfig{
			SweepInterval: getEnvDuration("REGISTER_SWEEP_INTERVAL", 1*time.Second),
		},
		Proxy: ProxyConfig{
			RedisAddr: getEnv("PROXY_REDIS_ADDR", "localhost:6379"),
			RedisDB:   getEnvInt("PROXY_REDIS_DB", 0),
			HTTPPort:  getEnvInt("PROXY_HTTP_PORT", 7999),
		},
		Telemetry: TelemetryConfig{
			EnablePprof:   getEnvBool("ENABLE_PPROF", true),
			PprofPort:     getEnvInt("PPROF_PORT", 6060),
			EnableMetrics: getEnvBool("ENABLE_METRICS", true),
			MetricsPort:   getEnvInt("METRICS_PORT", 9090),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks that the loaded configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}
	if c.Node.RedundancyTarget < 1 {
		return fmt.Errorf("redundancy target must be >= 1")
	}
	switch c.Node.PlacementStrategy {
	case "random", "round_robin":
	default:
		return fmt.Errorf("unknown placement strategy: %s", c.Node.PlacementStrategy)
	}
	return nil
}

// Helper functions, ported verbatim from the teacher's common/config.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
