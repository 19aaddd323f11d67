package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ALLiDoizCode/crosstown/internal/transport"
	"github.com/ALLiDoizCode/crosstown/xerrors"
)

const (
	defaultBasePricePerByte = 10
	defaultQueryTimeout     = 5 * time.Second
	defaultDefaultTimeout   = 30 * time.Second
)

// Load reads a YAML config file at path, applies .env and environment
// overrides, and sets defaults for every optional field (spec.md §6.4).
// Connector, HandlePacket, and the Toon callbacks are never loadable from
// YAML; the caller sets them on the returned Config before Validate().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.NewConfigError("read config file %s: %v", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, xerrors.NewConfigError("parse config file %s: %v", path, err)
	}

	applyDotEnv()
	applyEnvOverrides(cfg)
	setDefaults(cfg)
	return cfg, nil
}

// applyDotEnv loads a .env file into the process environment if present,
// matching the teacher's opt-in `.env` convention; a missing file is not
// an error (godotenv.Load returns one, which we ignore here).
func applyDotEnv() {
	_ = godotenv.Load()
}

// applyEnvOverrides applies CROSSTOWN_* environment variables on top of
// the YAML-loaded config, matching the teacher's env.go override rule:
// highest priority, applied after file load (spec.md §6.4).
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CROSSTOWN_SECRET_KEY"); v != "" {
		cfg.SecretKey = v
	}
	if v := os.Getenv("CROSSTOWN_RELAY_URL"); v != "" {
		cfg.RelayURL = v
	}
	if v := os.Getenv("CROSSTOWN_OWN_ILP_ADDRESS"); v != "" {
		cfg.OwnIlpAddress = v
	}
	if v := os.Getenv("CROSSTOWN_DEFAULT_RELAY_URL"); v != "" {
		cfg.DefaultRelayURL = v
	}
	if v := os.Getenv("CROSSTOWN_REGISTRY_URL"); v != "" {
		cfg.RegistryURL = v
	}
	if v := os.Getenv("CROSSTOWN_ARDRIVE_ENABLED"); v != "" {
		b := v == "true" || v == "1"
		cfg.ArdriveEnabledFlag = &b
	}
	if v := os.Getenv("CROSSTOWN_BASE_PRICE_PER_BYTE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.BasePricePerByte = n
		}
	}
	if v := os.Getenv("CROSSTOWN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CROSSTOWN_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// setDefaults fills every optional field spec.md §6.4 lists a default for.
func setDefaults(cfg *Config) {
	if cfg.BasePricePerByte == 0 {
		cfg.BasePricePerByte = defaultBasePricePerByte
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = defaultDefaultTimeout
	}
	if cfg.ArdriveEnabledFlag == nil {
		enabled := true
		cfg.ArdriveEnabledFlag = &enabled
	}
	if cfg.ToonEncoder == nil {
		cfg.ToonEncoder = transport.Encode
	}
	if cfg.ToonDecoder == nil {
		cfg.ToonDecoder = transport.Decode
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Health.Addr == "" {
		cfg.Health.Addr = ":8080"
	}
}

// Validate fills in any still-unset optional defaults (spec.md §6.4) and
// enforces the ConfigError invariants spec.md §4.6/§6.4 require before any
// bootstrap phase runs: a well-formed secret key and every required field
// present. Called by both construction paths — Load (via setDefaults
// already, harmlessly re-applied here) and a host building &Config{}
// directly for programmatic embedding (SPEC_FULL §3.3) — so neither skips
// defaulting.
func (c *Config) Validate() error {
	setDefaults(c)

	raw, err := hex.DecodeString(c.SecretKey)
	if err != nil || len(raw) != 32 {
		return xerrors.NewConfigError("secretKey must be 32 bytes of hex, got %d decoded bytes (err=%v)", len(raw), err)
	}
	if c.RelayURL == "" {
		return xerrors.NewConfigError("relayUrl is required")
	}
	if c.OwnIlpAddress == "" {
		return xerrors.NewConfigError("ownIlpAddress is required")
	}
	if c.Connector == nil {
		return xerrors.NewConfigError("connector handle is required")
	}
	if c.HandlePacket == nil {
		return xerrors.NewConfigError("handlePacket callback is required")
	}
	if c.IlpInfo.IlpAddress == "" {
		return xerrors.NewConfigError("ilpInfo.ilpAddress is required")
	}
	return nil
}

// String renders a redacted summary, never the secret key, matching the
// teacher's convention of never logging key material directly.
func (c *Config) String() string {
	return fmt.Sprintf("Config{relayUrl=%s ownIlpAddress=%s basePricePerByte=%d}", c.RelayURL, c.OwnIlpAddress, c.BasePricePerByte)
}
