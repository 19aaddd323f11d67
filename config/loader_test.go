package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeYAML(t, `
secretKey: "` + "00000000000000000000000000000000000000000000000000000000000001" + `"
relayUrl: "ws://relay.example/"
ownIlpAddress: "g.crosstown.node"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(defaultBasePricePerByte), cfg.BasePricePerByte)
	assert.Equal(t, defaultQueryTimeout, cfg.QueryTimeout)
	assert.Equal(t, defaultDefaultTimeout, cfg.DefaultTimeout)
	assert.True(t, cfg.ArdriveEnabled())
	assert.NotNil(t, cfg.ToonEncoder)
	assert.NotNil(t, cfg.ToonDecoder)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrideTakesPriority(t *testing.T) {
	path := writeYAML(t, `
secretKey: "0000000000000000000000000000000000000000000000000000000000000a"
relayUrl: "ws://from-file/"
ownIlpAddress: "g.file"
`)
	t.Setenv("CROSSTOWN_RELAY_URL", "ws://from-env/")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://from-env/", cfg.RelayURL)
}

func TestValidateRejectsBadSecretKey(t *testing.T) {
	cfg := &Config{SecretKey: "not-hex", RelayURL: "ws://x/", OwnIlpAddress: "g.x"}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidateRejectsMissingRequiredFields(t *testing.T) {
	cfg := &Config{SecretKey: "000000000000000000000000000000000000000000000000000000000000000a"}
	err := cfg.Validate()
	assert.Error(t, err)
}
