// Package config loads process configuration from a YAML or JSON file,
// MINI_THRIFT_* environment variables and built-in defaults, in that order
// of precedence from lowest to highest: defaults, file, environment.
//
// Environment keys are the upper-cased config path with "." and "-"
// replaced by "_", e.g. MINI_THRIFT_SERVER_ADDR or
// MINI_THRIFT_CLIENT_POOL_SIZE.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"mini-thrift/log"
	"mini-thrift/protocol"
	"mini-thrift/registry"
	"mini-thrift/transport"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MINI_THRIFT"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Client   ClientConfig   `mapstructure:"client"`
	Registry RegistryConfig `mapstructure:"registry"`
	Protocol ProtocolConfig `mapstructure:"protocol"`
	Log      log.Config     `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Network string `mapstructure:"network"`
	Addr    string `mapstructure:"addr"`
	// Advertise is the address published in the registry. Empty means the
	// listener address.
	Advertise       string        `mapstructure:"advertise"`
	Weight          int           `mapstructure:"weight"`
	Version         string        `mapstructure:"version"`
	MaxConns        int           `mapstructure:"max-conns"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
	// RateLimit is calls per second across all connections; 0 disables it.
	RateLimit float64 `mapstructure:"rate-limit"`
	RateBurst int     `mapstructure:"rate-burst"`
}

type ClientConfig struct {
	Network     string        `mapstructure:"network"`
	PoolSize    int           `mapstructure:"pool-size"`
	DialTimeout time.Duration `mapstructure:"dial-timeout"`
	DialRetries uint64        `mapstructure:"dial-retries"`
	// Timeout bounds each call; 0 leaves it to the caller's context.
	Timeout    time.Duration `mapstructure:"timeout"`
	Retries    int           `mapstructure:"retries"`
	RetryDelay time.Duration `mapstructure:"retry-delay"`
	// Balancer is round_robin, weighted_random or consistent_hash.
	Balancer string `mapstructure:"balancer"`
}

type RegistryConfig struct {
	// Kind is static or etcd.
	Kind        string        `mapstructure:"kind"`
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial-timeout"`
	TTL         int64         `mapstructure:"ttl"` // seconds
	// Addrs lists the instances of a static registry.
	Addrs []string `mapstructure:"addrs"`
}

type ProtocolConfig struct {
	// Transport is buffered or framed.
	Transport   string `mapstructure:"transport"`
	MaxFrame    uint32 `mapstructure:"max-frame"`
	StringLimit int    `mapstructure:"string-limit"`
	// ContainerLimit caps list, set and map sizes on read; 0 is unlimited.
	ContainerLimit int `mapstructure:"container-limit"`
	SkipDepth      int `mapstructure:"skip-depth"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.network", "tcp")
	v.SetDefault("server.addr", ":9090")
	v.SetDefault("server.advertise", "")
	v.SetDefault("server.weight", 1)
	v.SetDefault("server.version", "")
	v.SetDefault("server.max-conns", 1024)
	v.SetDefault("server.shutdown-timeout", 10*time.Second)
	v.SetDefault("server.rate-limit", 0.0)
	v.SetDefault("server.rate-burst", 100)

	v.SetDefault("client.network", "tcp")
	v.SetDefault("client.pool-size", 4)
	v.SetDefault("client.dial-timeout", 3*time.Second)
	v.SetDefault("client.dial-retries", 2)
	v.SetDefault("client.timeout", 5*time.Second)
	v.SetDefault("client.retries", 2)
	v.SetDefault("client.retry-delay", 50*time.Millisecond)
	v.SetDefault("client.balancer", "round_robin")

	v.SetDefault("registry.kind", "static")
	v.SetDefault("registry.endpoints", []string{"127.0.0.1:2379"})
	v.SetDefault("registry.dial-timeout", 5*time.Second)
	v.SetDefault("registry.ttl", 10)
	v.SetDefault("registry.addrs", []string{"127.0.0.1:9090"})

	v.SetDefault("protocol.transport", "buffered")
	v.SetDefault("protocol.max-frame", transport.DefaultMaxFrame)
	v.SetDefault("protocol.string-limit", 0)
	v.SetDefault("protocol.container-limit", protocol.DefaultContainerLimit)
	v.SetDefault("protocol.skip-depth", protocol.DefaultSkipDepth)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.stdout", true)
	v.SetDefault("log.disable-caller", false)
	v.SetDefault("log.file.filename", "")
	v.SetDefault("log.file.max-size", 100)
	v.SetDefault("log.file.max-days", 7)
	v.SetDefault("log.file.max-backups", 3)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9100")
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads path, which may be empty, and applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		switch ext := filepath.Ext(path); ext {
		case ".yaml", ".yml":
			v.SetConfigType("yaml")
		case ".json":
			v.SetConfigType("json")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.Protocol.Transport {
	case "buffered", "framed":
	default:
		return errors.Newf("protocol.transport: unknown transport %q", c.Protocol.Transport)
	}
	switch c.Registry.Kind {
	case "static", "etcd":
	default:
		return errors.Newf("registry.kind: unknown registry %q", c.Registry.Kind)
	}
	if c.Registry.Kind == "etcd" && len(c.Registry.Endpoints) == 0 {
		return errors.New("registry.endpoints: etcd needs at least one endpoint")
	}
	if c.Protocol.SkipDepth <= 0 {
		return errors.Newf("protocol.skip-depth: must be positive, got %d", c.Protocol.SkipDepth)
	}
	if c.Protocol.ContainerLimit < 0 {
		return errors.Newf("protocol.container-limit: must not be negative, got %d", c.Protocol.ContainerLimit)
	}
	if c.Client.PoolSize <= 0 {
		return errors.Newf("client.pool-size: must be positive, got %d", c.Client.PoolSize)
	}
	return nil
}

// Layers returns the transport stack both peers must use.
func (p ProtocolConfig) Layers() []transport.Layer {
	layers := []transport.Layer{transport.BufferedLayer(0)}
	if p.Transport == "framed" {
		layers = append(layers, transport.FramedLayer(p.MaxFrame))
	}
	return layers
}

// NewProtocol returns a factory for binary protocols with the configured
// limits.
func (p ProtocolConfig) NewProtocol() func() protocol.Protocol {
	var opts []protocol.BinaryOption
	if p.StringLimit > 0 {
		opts = append(opts, protocol.WithStringLimit(p.StringLimit))
	}
	if p.ContainerLimit >= 0 {
		opts = append(opts, protocol.WithContainerLimit(p.ContainerLimit))
	}
	if p.SkipDepth > 0 {
		opts = append(opts, protocol.WithSkipDepth(p.SkipDepth))
	}
	return func() protocol.Protocol { return protocol.NewBinary(opts...) }
}

// Open connects to the configured registry. A static registry serves Addrs
// for serviceName. The etcd registry must be closed by the caller.
func (r RegistryConfig) Open(serviceName string) (registry.Registry, error) {
	switch r.Kind {
	case "etcd":
		reg, err := registry.NewEtcdRegistry(r.Endpoints, r.DialTimeout)
		if err != nil {
			return nil, err
		}
		return reg, nil
	default:
		return registry.NewStaticRegistryFor(serviceName, r.Addrs...), nil
	}
}
