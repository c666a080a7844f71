package config

import (
	"bytes"
	_ "embed"
	"os"
	"regexp"
	"time"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// DefaultRestartDelay is used when the configuration does not set restart_delay.
const DefaultRestartDelay = 10 * time.Second

//go:embed default.yaml
var defaultConfig []byte

var nameRe = regexp.MustCompile(`^[a-z0-9_-]+$`)

// OutputMode selects where the output of a miner goes.
type OutputMode string

const (
	// OutputConsole interleaves the miner output on the console.
	OutputConsole OutputMode = "console"
	// OutputFile writes the miner output to a log file which is tailed to the console.
	OutputFile OutputMode = "file"
)

type Config struct {
	// RestartDelay is the wait between a miner exit and its relaunch.
	RestartDelay time.Duration `yaml:"restart_delay"`
	// MaxRestartDelay enables exponential growth of the delay when greater than RestartDelay.
	MaxRestartDelay time.Duration `yaml:"max_restart_delay"`
	// StopTimeout bounds the wait for a miner after SIGTERM. Zero waits forever.
	StopTimeout time.Duration `yaml:"stop_timeout"`
	// ListenAddress of the status API. Empty disables the API.
	ListenAddress string `yaml:"listen_address"`
	// Wallet is used by every miner which does not set its own.
	Wallet string  `yaml:"wallet"`
	Miners []Miner `yaml:"miners"`
}

type Miner struct {
	// Name of the miner, also used as its directory name and output tag.
	Name string `yaml:"name"`
	// ArchiveURL is the release archive to download.
	ArchiveURL string `yaml:"archive_url"`
	// ReleasePage is scraped for an archive link when ArchiveURL is empty.
	ReleasePage string `yaml:"release_page"`
	// AssetPattern is the regular expression matched against release page links.
	AssetPattern string `yaml:"asset_pattern"`
	// Binary is the exact file name of the executable inside the archive.
	Binary   string   `yaml:"binary"`
	Pool     string   `yaml:"pool"`
	Wallet   string   `yaml:"wallet"`
	Password string   `yaml:"password"`
	Args     []string `yaml:"args"`
	// Env holds extra KEY=VALUE entries for the miner environment.
	Env    []string   `yaml:"env"`
	Output OutputMode `yaml:"output"`
	// RunAs is a UNIX user used for impersonation. Empty keeps the current user.
	RunAs string `yaml:"run_as"`

	// inheritWallet is set when Wallet comes from the configuration level.
	inheritWallet bool
}

// Load reads the configuration at path, or the embedded default when path is empty.
func Load(path string) (*Config, error) {
	data := defaultConfig
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, xerrors.Errorf("reading config %s: %w", path, err)
		}
		data = b
	}
	return Parse(data)
}

// Parse decodes a YAML configuration and fills in defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	cfg := Config{
		RestartDelay: DefaultRestartDelay,
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, xerrors.Errorf("invalid yaml config: %w", err)
	}
	for i := range cfg.Miners {
		m := &cfg.Miners[i]
		if m.Output == "" {
			m.Output = OutputConsole
		}
		if m.Password == "" {
			m.Password = "x"
		}
		m.inheritWallet = m.Wallet == ""
	}
	cfg.inheritWallet()
	return &cfg, nil
}

// SetWallet replaces the configuration level wallet. Miners with their own
// wallet keep it. An empty wallet changes nothing.
func (c *Config) SetWallet(wallet string) {
	if wallet == "" {
		return
	}
	c.Wallet = wallet
	c.inheritWallet()
}

func (c *Config) inheritWallet() {
	for i := range c.Miners {
		if c.Miners[i].inheritWallet {
			c.Miners[i].Wallet = c.Wallet
		}
	}
}

// Miner returns the miner called name.
func (c *Config) Miner(name string) (Miner, bool) {
	for _, m := range c.Miners {
		if m.Name == name {
			return m, true
		}
	}
	return Miner{}, false
}

// Validate checks everything needed to install and run the miners.
func (c *Config) Validate() error {
	return c.validate(true)
}

// ValidateInstall checks only what installing the miners needs.
func (c *Config) ValidateInstall() error {
	return c.validate(false)
}

func (c *Config) validate(run bool) error {
	if c.RestartDelay < 0 {
		return xerrors.Errorf("restart_delay must not be negative: %s", c.RestartDelay)
	}
	if c.MaxRestartDelay < 0 {
		return xerrors.Errorf("max_restart_delay must not be negative: %s", c.MaxRestartDelay)
	}
	if c.MaxRestartDelay > 0 && c.RestartDelay == 0 {
		return xerrors.New("max_restart_delay needs a positive restart_delay to grow from")
	}
	if c.StopTimeout < 0 {
		return xerrors.Errorf("stop_timeout must not be negative: %s", c.StopTimeout)
	}
	if len(c.Miners) == 0 {
		return xerrors.New("no miners configured")
	}

	seen := make(map[string]struct{}, len(c.Miners))
	for _, m := range c.Miners {
		if err := m.validateSource(); err != nil {
			return err
		}
		if run {
			if err := m.validateRun(); err != nil {
				return err
			}
		}
		if _, ok := seen[m.Name]; ok {
			return xerrors.Errorf("miner %q is defined twice", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

func (m *Miner) validateSource() error {
	if !nameRe.MatchString(m.Name) {
		return xerrors.Errorf("invalid miner name %q", m.Name)
	}
	if m.Binary == "" {
		return xerrors.Errorf("miner %s: binary not defined", m.Name)
	}
	if m.ArchiveURL == "" && m.ReleasePage == "" {
		return xerrors.Errorf("miner %s: archive_url or release_page must be defined", m.Name)
	}
	if m.ArchiveURL == "" && m.AssetPattern == "" {
		return xerrors.Errorf("miner %s: asset_pattern is required with release_page", m.Name)
	}
	if m.AssetPattern != "" {
		if _, err := regexp.Compile(m.AssetPattern); err != nil {
			return xerrors.Errorf("miner %s: invalid asset_pattern: %w", m.Name, err)
		}
	}
	return nil
}

func (m *Miner) validateRun() error {
	if m.Pool == "" {
		return xerrors.Errorf("miner %s: pool not defined", m.Name)
	}
	if m.Wallet == "" {
		return xerrors.Errorf("miner %s: wallet not defined", m.Name)
	}
	switch m.Output {
	case OutputConsole, OutputFile:
	default:
		return xerrors.Errorf("miner %s: unknown output mode %q", m.Name, m.Output)
	}
	if _, err := parseArgs(m.Args); err != nil {
		return xerrors.Errorf("miner %s: %w", m.Name, err)
	}
	return nil
}
