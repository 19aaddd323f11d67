// Package config loads and validates the construction config for a
// Crosstown node (spec.md §6.4), modeled on the teacher's config/loader.go
// and config/env.go: YAML file, .env, and environment-variable overrides,
// applied in that priority order, with defaults for every optional field.
package config

import (
	"time"

	"github.com/ALLiDoizCode/crosstown/connector"
	"github.com/ALLiDoizCode/crosstown/internal/transport"
	"github.com/ALLiDoizCode/crosstown/nostr"
	"github.com/ALLiDoizCode/crosstown/peers"
)

// Config is the full construction config for CreateNode (spec.md §6.4).
// The YAML-loadable fields are tagged; Connector, HandlePacket, and the
// Toon callbacks are Go values a host sets programmatically after Load.
type Config struct {
	SecretKey     string          `yaml:"secretKey"`
	IlpInfo       nostr.PeerInfo  `yaml:"ilpInfo"`
	RelayURL      string          `yaml:"relayUrl"`
	OwnIlpAddress string          `yaml:"ownIlpAddress"`

	ToonEncoder transport.Encoder `yaml:"-"`
	ToonDecoder transport.Decoder `yaml:"-"`

	Connector    connector.Handle        `yaml:"-"`
	HandlePacket connector.PacketHandler `yaml:"-"`

	KnownPeers         []peers.Candidate     `yaml:"knownPeers"`
	ArdriveEnabledFlag *bool                  `yaml:"ardriveEnabled"`
	RegistryURL        string                 `yaml:"registryUrl"`
	DefaultRelayURL    string                 `yaml:"defaultRelayUrl"`
	BasePricePerByte   uint64                 `yaml:"basePricePerByte"`
	QueryTimeout       time.Duration          `yaml:"queryTimeout"`
	DefaultTimeout     time.Duration          `yaml:"defaultTimeout"`
	SettlementInfo     *nostr.SettlementInfo  `yaml:"settlementInfo"`

	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig controls the internal/logger output (SPEC_FULL §3.1).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the /metrics HTTP endpoint (SPEC_FULL §3.4).
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// HealthConfig controls the /healthz HTTP endpoint (SPEC_FULL §11).
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ArdriveEnabled reports whether registry-sourced peer discovery is on,
// defaulting to true when unset (spec.md §6.4 "ardriveEnabled (default true)").
func (c *Config) ArdriveEnabled() bool {
	if c.ArdriveEnabledFlag == nil {
		return true
	}
	return *c.ArdriveEnabledFlag
}
