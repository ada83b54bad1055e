package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Defaults for the federation timing knobs. These match the wire contract
// the resolver expects; change them per deployment, not here.
const (
	DefaultListenAddress      = ":8470"
	DefaultHeartbeatInterval  = 60 * time.Second
	DefaultElectionInterval   = 180 * time.Second
	DefaultLeaderPollInterval = 10 * time.Second
	DefaultStalePeerThreshold = 300 * time.Second
	DefaultDrainTimeout       = 30 * time.Second
	DefaultRequestTimeout     = 5 * time.Second
)

// Handover modes. ZeroDowntime releases ownership labels and leaves workloads
// running; DrainAndStop attempts a graceful stop before releasing.
const (
	HandoverZeroDowntime = "zeroDowntime"
	HandoverDrainAndStop = "drainAndStop"
)

// Validation errors. These are ConfigErrors: fleetd refuses to start on any
// of them rather than run with a partial identity or unsigned federation.
var (
	ErrMissingNodeID    = errors.New("node.id is required and must be globally unique")
	ErrMissingSecret    = errors.New("federation.secret is required; refusing to run unsigned")
	ErrInvalidHandover  = errors.New("handover.mode must be zeroDowntime or drainAndStop")
	ErrMissingResolver  = errors.New("resolver.url is required unless resolver.embedded is set")
	ErrNegativeInterval = errors.New("federation intervals must be positive durations")
)

type Node struct {
	// ID is this node's globally unique identifier. It is the election
	// tie-breaker and the value written into ownership labels.
	ID string `yaml:"id"`
	// Environment scopes which workloads this node adopts and releases.
	Environment string `yaml:"environment"`
}

type Server struct {
	ListenAddress string `yaml:"listenAddress"`
	// AuthToken, when set, is required as a bearer token on mutating
	// endpoints (deploy, token issuance). Read-only endpoints stay open.
	AuthToken string `yaml:"authToken"`
	// TrustedProxies are IPs/CIDRs to trust for X-Forwarded-For headers.
	TrustedProxies []string `yaml:"trustedProxies"`
}

type Resolver struct {
	// URL is the base URL of the external resolver. May be empty when
	// Embedded is set, in which case fleetd talks to its own resolver.
	URL string `yaml:"url"`
	// Embedded hosts the /federation/* resolver endpoints in-process,
	// backed by the in-memory last-write-wins store.
	Embedded bool `yaml:"embedded"`
	// RequestTimeout bounds every resolver round-trip (e.g. "5s").
	RequestTimeout string `yaml:"requestTimeout"`
}

type Federation struct {
	// Secret is the shared HMAC secret known to all nodes and the
	// resolver. Required; also settable via FLEET_FEDERATION_SECRET.
	Secret string `yaml:"secret"`
	// HeartbeatInterval controls the fire-and-forget liveness signal (e.g. "60s").
	HeartbeatInterval string `yaml:"heartbeatInterval"`
	// ElectionInterval controls how often a candidate is computed and broadcast.
	ElectionInterval string `yaml:"electionInterval"`
	// LeaderPollInterval controls the convergence poll of the resolver's leader record.
	LeaderPollInterval string `yaml:"leaderPollInterval"`
	// StalePeerThreshold excludes peers not heard from within this window.
	StalePeerThreshold string `yaml:"stalePeerThreshold"`
}

type Handover struct {
	Mode         string `yaml:"mode"`
	DrainTimeout string `yaml:"drainTimeout"`
}

type Kubernetes struct {
	// Context selects a kubeconfig context for the workload runtime.
	// Empty means in-cluster config.
	Context string `yaml:"context"`
	// Namespace the workload runtime operates in. Empty means all namespaces.
	Namespace string `yaml:"namespace"`
}

type Kafka struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Audit struct {
	Kafka Kafka `yaml:"kafka"`
}

type Mail struct {
	Enabled       bool     `yaml:"enabled"`
	Host          string   `yaml:"host"`
	Port          int      `yaml:"port"`
	User          string   `yaml:"user"`
	Password      string   `yaml:"password"`
	SenderAddress string   `yaml:"senderAddress"`
	Recipients    []string `yaml:"recipients"`
}

type Config struct {
	Node       Node       `yaml:"node"`
	Server     Server     `yaml:"server"`
	Resolver   Resolver   `yaml:"resolver"`
	Federation Federation `yaml:"federation"`
	Handover   Handover   `yaml:"handover"`
	Kubernetes Kubernetes `yaml:"kubernetes"`
	Audit      Audit      `yaml:"audit"`
	Mail       Mail       `yaml:"mail"`
}

// Load loads the fleetd configuration from a file path. If configPath is
// empty, defaults to "./config.yaml"; the path can also be overridden via
// the FLEET_CONFIG_PATH environment variable. Environment variables
// FLEET_NODE_ID, FLEET_ENV, FLEET_FEDERATION_SECRET and FLEET_RESOLVER_URL
// override the corresponding file values.
func Load(configPath ...string) (Config, error) {
	path := "./config.yaml"
	if env := os.Getenv("FLEET_CONFIG_PATH"); env != "" {
		path = env
	}
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	var config Config

	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("trying to open fleetd config file %s: %v", path, err)
	}

	if err := yaml.Unmarshal(content, &config); err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %v", path, err)
	}

	config.applyEnv()
	config.applyDefaults()
	return config, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FLEET_NODE_ID"); v != "" {
		c.Node.ID = v
	}
	if v := os.Getenv("FLEET_ENV"); v != "" {
		c.Node.Environment = v
	}
	if v := os.Getenv("FLEET_FEDERATION_SECRET"); v != "" {
		c.Federation.Secret = v
	}
	if v := os.Getenv("FLEET_RESOLVER_URL"); v != "" {
		c.Resolver.URL = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = DefaultListenAddress
	}
	if c.Handover.Mode == "" {
		c.Handover.Mode = HandoverZeroDowntime
	}
}

// Validate checks the options fleetd cannot run without. Any error returned
// here is fatal at startup.
func (c *Config) Validate() error {
	if c.Node.ID == "" {
		return ErrMissingNodeID
	}
	if c.Federation.Secret == "" {
		return ErrMissingSecret
	}
	if c.Handover.Mode != HandoverZeroDowntime && c.Handover.Mode != HandoverDrainAndStop {
		return ErrInvalidHandover
	}
	if c.Resolver.URL == "" && !c.Resolver.Embedded {
		return ErrMissingResolver
	}
	for _, d := range []time.Duration{
		c.HeartbeatInterval(), c.ElectionInterval(), c.LeaderPollInterval(), c.StalePeerThreshold(),
	} {
		if d <= 0 {
			return ErrNegativeInterval
		}
	}
	return nil
}

// HeartbeatInterval returns the parsed heartbeat interval, falling back to
// the default when unset.
func (c *Config) HeartbeatInterval() time.Duration {
	return durationOr(c.Federation.HeartbeatInterval, DefaultHeartbeatInterval)
}

func (c *Config) ElectionInterval() time.Duration {
	return durationOr(c.Federation.ElectionInterval, DefaultElectionInterval)
}

func (c *Config) LeaderPollInterval() time.Duration {
	return durationOr(c.Federation.LeaderPollInterval, DefaultLeaderPollInterval)
}

func (c *Config) StalePeerThreshold() time.Duration {
	return durationOr(c.Federation.StalePeerThreshold, DefaultStalePeerThreshold)
}

func (c *Config) DrainTimeout() time.Duration {
	return durationOr(c.Handover.DrainTimeout, DefaultDrainTimeout)
}

func (c *Config) ResolverRequestTimeout() time.Duration {
	return durationOr(c.Resolver.RequestTimeout, DefaultRequestTimeout)
}

// durationOr parses s as a Go duration, returning fallback when s is empty
// or malformed. Validate rejects non-positive results; format slop like
// "300" (instead of "300s") degrades to the default instead of crashing a
// running node.
func durationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
