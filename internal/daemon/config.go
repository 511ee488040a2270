// Package daemon wires the FocusDeck process: configuration, stores,
// services, and the HTTP server.
package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/focusdeck/focusdeck/internal/domain"
)

// Config is the daemon configuration, loaded from ~/.focusdeck/config.toml.
type Config struct {
	API      APIConfig      `toml:"api"`
	Data     DataConfig     `toml:"data"`
	Metering MeteringConfig `toml:"metering"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// Addr returns the listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DataConfig configures the storage backends.
type DataConfig struct {
	// Dir holds the sqlite database and the per-account documents.
	Dir string `toml:"dir"`
	// LocalOnly disables the durable backend entirely; every account is
	// served from the local document store.
	LocalOnly bool `toml:"local_only"`
	// WatchLocal enables the filesystem watcher that turns document writes
	// from other processes into reload signals.
	WatchLocal bool `toml:"watch_local"`
}

// DatabasePath returns the sqlite file location.
func (c DataConfig) DatabasePath() string {
	return filepath.Join(c.Dir, "focusdeck.db")
}

// DocumentsDir returns the per-account document directory.
func (c DataConfig) DocumentsDir() string {
	return filepath.Join(c.Dir, "accounts")
}

// MeteringConfig carries the per-feature costs in hundredths.
type MeteringConfig struct {
	ChatNormal int64 `toml:"chat_normal"`
	ChatIgnite int64 `toml:"chat_ignite"`
	CrudAI     int64 `toml:"crud_ai"`
	ImageGen   int64 `toml:"image_gen"`
}

// Apply installs the configured costs as the process-wide feature costs.
func (c MeteringConfig) Apply() {
	domain.FeatureCosts[domain.FeatureChatNormal] = domain.Cents(c.ChatNormal)
	domain.FeatureCosts[domain.FeatureChatIgnite] = domain.Cents(c.ChatIgnite)
	domain.FeatureCosts[domain.FeatureCrudAI] = domain.Cents(c.CrudAI)
	domain.FeatureCosts[domain.FeatureImageGen] = domain.Cents(c.ImageGen)
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 7333,
		},
		Data: DataConfig{
			Dir:        defaultDataDir(),
			WatchLocal: true,
		},
		Metering: MeteringConfig{
			ChatNormal: int64(domain.FeatureCosts[domain.FeatureChatNormal]),
			ChatIgnite: int64(domain.FeatureCosts[domain.FeatureChatIgnite]),
			CrudAI:     int64(domain.FeatureCosts[domain.FeatureCrudAI]),
			ImageGen:   int64(domain.FeatureCosts[domain.FeatureImageGen]),
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".focusdeck"
	}
	return filepath.Join(home, ".focusdeck")
}

// ConfigPath returns the config file location.
func ConfigPath() string {
	return filepath.Join(defaultDataDir(), "config.toml")
}

// Load reads the config file at path, falling back to defaults when it does
// not exist. Settings present in the file override defaults section-wise.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("invalid api.port %d", c.API.Port)
	}
	if c.Metering.ChatIgnite <= c.Metering.ChatNormal {
		return fmt.Errorf("metering.chat_ignite (%d) must exceed metering.chat_normal (%d)",
			c.Metering.ChatIgnite, c.Metering.ChatNormal)
	}
	return nil
}
