package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
rpc_url: "https://rpc.example.com"
chain_id: 137
contract_address: "0x1000000000000000000000000000000000000001"
relayer_url: "https://relayer.example.com"
poll_interval_ms: 250
cleanup_interval_s: 1800
log_level: "debug"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://rpc.example.com", cfg.RPCURL)
	assert.Equal(t, int64(137), cfg.ChainID)
	assert.Equal(t, "0x1000000000000000000000000000000000000001", cfg.ContractAddress)
	assert.Equal(t, "https://relayer.example.com", cfg.RelayerURL)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.CleanupInterval)
	assert.Equal(t, "debug", cfg.LogLevel)

	// 文件未给出的字段落默认值
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.ExpirationCheck)
	assert.Equal(t, time.Duration(0), cfg.ExpirationMargin)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("RPC_URL", "https://env.example.com")
	t.Setenv("POLL_INTERVAL_MS", "100")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.RPCURL)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	// 环境变量没覆盖的仍来自文件
	assert.Equal(t, int64(137), cfg.ChainID)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("RPC_URL", "https://env.example.com")
	t.Setenv("CONTRACT_ADDRESS", "0x1000000000000000000000000000000000000001")
	t.Setenv("CHAIN_ID", "137")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(137), cfg.ChainID)
	assert.Equal(t, 200*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
}

func TestLoad_MissingRPCURL(t *testing.T) {
	_, err := Load(writeConfig(t, `
chain_id: 137
contract_address: "0x1000000000000000000000000000000000000001"
`))
	assert.Error(t, err)
}

func TestLoad_BadContractAddress(t *testing.T) {
	_, err := Load(writeConfig(t, `
rpc_url: "https://rpc.example.com"
chain_id: 137
contract_address: "not-an-address"
`))
	assert.Error(t, err)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("rpc_url = \"x\""), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
