// Package config handles the shelf client configuration stored in
// ~/.config/shelf/config.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/sys/unix"

	"github.com/marcus/shelf/internal/optimistic"
)

// Config is the client configuration.
type Config struct {
	ServerURL    string `toml:"server_url" json:"server_url" yaml:"server_url"`
	Username     string `toml:"username,omitempty" json:"username,omitempty" yaml:"username,omitempty"`
	Session      string `toml:"session,omitempty" json:"session,omitempty" yaml:"session,omitempty"`
	Transport    string `toml:"transport" json:"transport" yaml:"transport"`             // "rest" (default) or "rpc"
	DeletePolicy string `toml:"delete_policy" json:"delete_policy" yaml:"delete_policy"` // "mark" (default) or "remove"
}

const (
	DefaultServerURL = "http://localhost:8080"
	defaultTransport = "rest"
)

// Default returns a config with every field at its default.
func Default() *Config {
	return &Config{
		ServerURL:    DefaultServerURL,
		Transport:    defaultTransport,
		DeletePolicy: optimistic.DeleteMark.String(),
	}
}

// Path returns the config file path. SHELF_CONFIG overrides the default
// ~/.config/shelf/config.toml.
func Path() (string, error) {
	if v := os.Getenv("SHELF_CONFIG"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".config", "shelf", "config.toml"), nil
}

// Load reads the config at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) fillDefaults() {
	if strings.TrimSpace(c.ServerURL) == "" {
		c.ServerURL = DefaultServerURL
	}
	if c.Transport == "" {
		c.Transport = defaultTransport
	}
	if c.DeletePolicy == "" {
		c.DeletePolicy = optimistic.DeleteMark.String()
	}
}

// Validate checks the enumerated fields.
func (c *Config) Validate() error {
	switch c.Transport {
	case "rest", "rpc":
	default:
		return fmt.Errorf("unknown transport %q (want rest or rpc)", c.Transport)
	}
	if _, err := optimistic.ParseDeletePolicy(c.DeletePolicy); err != nil {
		return err
	}
	return nil
}

// Policy returns the parsed delete policy.
func (c *Config) Policy() optimistic.DeletePolicy {
	p, _ := optimistic.ParseDeletePolicy(c.DeletePolicy)
	return p
}

// Server returns the server URL. SHELF_SERVER_URL overrides the file.
func (c *Config) Server() string {
	if v := os.Getenv("SHELF_SERVER_URL"); v != "" {
		return v
	}
	return c.ServerURL
}

// Save writes the config using atomic write (temp file + rename). The file
// holds the session token and is created 0600.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "config-*.toml.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, path)
}

// Update loads the config, applies fn and saves the result while holding an
// exclusive lock, so concurrent shelf processes do not lose writes.
func Update(path string, fn func(*Config) error) error {
	return withLock(path, func() error {
		cfg, err := Load(path)
		if err != nil {
			return err
		}
		if err := fn(cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return Save(path, cfg)
	})
}

// withLock serializes access to the config file using flock on a sibling
// lock file.
func withLock(path string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return err
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return fn()
}

// SetSession stores the signed-in user's session.
func SetSession(path, username, session string) error {
	return Update(path, func(c *Config) error {
		c.Username = username
		c.Session = session
		return nil
	})
}

// ClearSession forgets the stored session.
func ClearSession(path string) error {
	return SetSession(path, "", "")
}

// Set assigns one config key by its TOML name.
func Set(path, key, value string) error {
	return Update(path, func(c *Config) error {
		switch key {
		case "server_url":
			c.ServerURL = value
		case "transport":
			c.Transport = value
		case "delete_policy":
			c.DeletePolicy = value
		default:
			return fmt.Errorf("unknown config key %q (want server_url, transport or delete_policy)", key)
		}
		return nil
	})
}
