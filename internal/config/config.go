// internal/config/config.go
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

// Config represents the application configuration
type Config struct {
	DefaultProfile string    `toml:"default_profile"`
	PageSize       int       `toml:"page_size"`
	HistoryLimit   int       `toml:"history_limit"`
	ReadOnly       bool      `toml:"read_only"`
	Profiles       []Profile `toml:"profiles"`
}

// Profile represents a database connection profile
type Profile struct {
	Name     string `toml:"name"`
	Type     string `toml:"type"` // postgres, mysql, sqlite
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Database string `toml:"database"`
	// Password is kept in memory for usage
	Password string `toml:"-"`
	// EncryptedPassword is the one persisted in the config file
	EncryptedPassword string `toml:"password"`

	// SSH tunnel configuration
	SSHHost     string `toml:"ssh_host,omitempty"`
	SSHPort     int    `toml:"ssh_port,omitempty"`
	SSHUser     string `toml:"ssh_user,omitempty"`
	SSHPassword string `toml:"-"` // In-memory
	SSHKeyPath  string `toml:"ssh_key_path,omitempty"`

	// EncryptedSSHPassword persisted in config
	EncryptedSSHPassword string `toml:"ssh_password,omitempty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		DefaultProfile: "",
		PageSize:       50,
		HistoryLimit:   5000,
		ReadOnly:       false,
		Profiles:       []Profile{},
	}
}

// ConfigPath returns the XDG-compliant config file path
func ConfigPath() (string, error) {
	return xdg.ConfigFile("tableglass/config.toml")
}

// Load loads the config from disk or creates default
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		// First run: create default
		cfg := DefaultConfig()
		if err := cfg.Save(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Populate defaults for missing fields
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 5000
	}

	// Open sealed passwords. The keyring is only consulted when a profile
	// actually carries one.
	if cfg.hasSealedSecrets() {
		if key, err := masterKey(); err == nil {
			for i := range cfg.Profiles {
				if cfg.Profiles[i].EncryptedPassword != "" {
					if secret, err := openSecret(cfg.Profiles[i].EncryptedPassword, key); err == nil {
						cfg.Profiles[i].Password = secret
					}
				}
				if cfg.Profiles[i].EncryptedSSHPassword != "" {
					if secret, err := openSecret(cfg.Profiles[i].EncryptedSSHPassword, key); err == nil {
						cfg.Profiles[i].SSHPassword = secret
					}
				}
			}
		}
	}

	return &cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	// Config holds secrets, keep it owner-only
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	// Seal passwords before saving. The keyring is only consulted when a
	// profile actually carries one.
	if c.hasPlainSecrets() {
		if key, err := masterKey(); err == nil {
			for i := range c.Profiles {
				if c.Profiles[i].Password != "" {
					if sealed, err := sealSecret(c.Profiles[i].Password, key); err == nil {
						c.Profiles[i].EncryptedPassword = sealed
					}
				}
				if c.Profiles[i].SSHPassword != "" {
					if sealed, err := sealSecret(c.Profiles[i].SSHPassword, key); err == nil {
						c.Profiles[i].EncryptedSSHPassword = sealed
					}
				}
			}
		}
	}

	return toml.NewEncoder(f).Encode(c)
}

func (c *Config) hasSealedSecrets() bool {
	for _, p := range c.Profiles {
		if p.EncryptedPassword != "" || p.EncryptedSSHPassword != "" {
			return true
		}
	}
	return false
}

func (c *Config) hasPlainSecrets() bool {
	for _, p := range c.Profiles {
		if p.Password != "" || p.SSHPassword != "" {
			return true
		}
	}
	return false
}
