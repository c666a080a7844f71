//go:build unit

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/squarefactory/minerd/config"
	"github.com/stretchr/testify/require"
)

const testConfig = `
restart_delay: 2s
max_restart_delay: 1m
miners:
  - name: gpu
    archive_url: https://example.com/gminer.tar.xz
    binary: miner
    pool: kawpow.example.com:9200
    wallet: RWALLET
    args: ["--server", "{{.Pool}}", "--user", "{{.Wallet}}.{{.Worker}}", "--pass", "{{.Password}}"]
  - name: cpu
    release_page: https://example.com/releases
    asset_pattern: 'linux-static-x64\.tar\.gz$'
    binary: xmrig
    pool: randomx.example.com:3333
    output: file
`

func TestParseIdentity(t *testing.T) {
	valid := map[string]config.Identity{
		"7":   "v007",
		"07":  "v007",
		"42":  "v042",
		"123": "v123",
		"0":   "v000",
		"999": "v999",
	}
	for in, want := range valid {
		got, err := config.ParseIdentity(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "abc", "1234", "-1", "+7", " 7", "7 ", "1a", "٣"} {
		_, err := config.ParseIdentity(in)
		require.Error(t, err, in)
	}
}

func TestParseIdentityDeterministic(t *testing.T) {
	a, err := config.ParseIdentity("17")
	require.NoError(t, err)
	b, err := config.ParseIdentity("17")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)

	require.Equal(t, 2*time.Second, cfg.RestartDelay)
	require.Equal(t, time.Minute, cfg.MaxRestartDelay)
	require.Len(t, cfg.Miners, 2)
	require.Equal(t, config.OutputConsole, cfg.Miners[0].Output)
	require.Equal(t, config.OutputFile, cfg.Miners[1].Output)
	require.Equal(t, "x", cfg.Miners[0].Password)

	// cpu has no wallet yet
	require.Error(t, cfg.Validate())
	cfg.SetWallet("BTCWALLET")
	require.NoError(t, cfg.Validate())

	gpu, ok := cfg.Miner("gpu")
	require.True(t, ok)
	require.Equal(t, "RWALLET", gpu.Wallet)
	cpu, ok := cfg.Miner("cpu")
	require.True(t, ok)
	require.Equal(t, "BTCWALLET", cpu.Wallet)
}

func TestParseDefaultRestartDelay(t *testing.T) {
	cfg, err := config.Parse([]byte("miners: []\n"))
	require.NoError(t, err)
	require.Equal(t, config.DefaultRestartDelay, cfg.RestartDelay)

	cfg, err = config.Parse([]byte("restart_delay: 0s\n"))
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), cfg.RestartDelay)
}

func TestParseUnknownField(t *testing.T) {
	_, err := config.Parse([]byte("restart_dealy: 2s\n"))
	require.Error(t, err)
}

func TestLoadDefault(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Len(t, cfg.Miners, 2)

	// runs without any wallet given
	require.NoError(t, cfg.Validate())
	for _, m := range cfg.Miners {
		require.Equal(t, cfg.Wallet, m.Wallet, m.Name)
		require.NotEmpty(t, m.Wallet, m.Name)
	}
}

func TestSetWalletReplacesDefault(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.SetWallet("BTCWALLET")
	for _, m := range cfg.Miners {
		require.Equal(t, "BTCWALLET", m.Wallet, m.Name)
	}

	cfg.SetWallet("")
	for _, m := range cfg.Miners {
		require.Equal(t, "BTCWALLET", m.Wallet, m.Name)
	}
}

func TestMinerWalletWinsOverConfigWallet(t *testing.T) {
	cfg, err := config.Parse([]byte("wallet: SHARED\n" + testConfig))
	require.NoError(t, err)

	gpu, _ := cfg.Miner("gpu")
	require.Equal(t, "RWALLET", gpu.Wallet)
	cpu, _ := cfg.Miner("cpu")
	require.Equal(t, "SHARED", cpu.Wallet)
	require.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Miners, 2)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *config.Config {
		cfg, err := config.Parse([]byte(testConfig))
		require.NoError(t, err)
		cfg.SetWallet("W")
		return cfg
	}

	tests := map[string]func(c *config.Config){
		"negative delay":    func(c *config.Config) { c.RestartDelay = -time.Second },
		"no miners":         func(c *config.Config) { c.Miners = nil },
		"duplicate":         func(c *config.Config) { c.Miners[1].Name = "gpu" },
		"bad name":          func(c *config.Config) { c.Miners[0].Name = "GPU 1" },
		"no binary":         func(c *config.Config) { c.Miners[0].Binary = "" },
		"no source":         func(c *config.Config) { c.Miners[0].ArchiveURL = "" },
		"no pattern":        func(c *config.Config) { c.Miners[1].AssetPattern = "" },
		"bad pattern":       func(c *config.Config) { c.Miners[1].AssetPattern = "(" },
		"no pool":           func(c *config.Config) { c.Miners[0].Pool = "" },
		"bad output":        func(c *config.Config) { c.Miners[0].Output = "syslog" },
		"bad template":      func(c *config.Config) { c.Miners[0].Args = []string{"{{.Pool"} },
		"negative timeout":  func(c *config.Config) { c.StopTimeout = -1 },
		"backoff from zero": func(c *config.Config) { c.RestartDelay = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestRenderArgs(t *testing.T) {
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)
	gpu, _ := cfg.Miner("gpu")

	args, err := gpu.RenderArgs("v007")
	require.NoError(t, err)
	require.Equal(t, []string{
		"--server", "kawpow.example.com:9200",
		"--user", "RWALLET.v007",
		"--pass", "x",
	}, args)

	gpu.Args = []string{"{{.Unknown}}"}
	_, err = gpu.RenderArgs("v007")
	require.Error(t, err)
}

func TestValidateInstallIgnoresWallet(t *testing.T) {
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)

	require.Error(t, cfg.Validate())
	require.NoError(t, cfg.ValidateInstall())

	cfg.Miners[0].Binary = ""
	require.Error(t, cfg.ValidateInstall())
}
