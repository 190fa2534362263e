package game

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gaia-mud/gaia/pkg/world"
)

// Config is the server configuration, loadable from YAML with CLI/env
// overrides applied by the caller.
type Config struct {
	TelnetPort    int    `yaml:"telnet_port"`
	WebSocketPort int    `yaml:"websocket_port"`
	MetricsAddr   string `yaml:"metrics_addr"`
	Debug         bool   `yaml:"debug"`

	TLS       bool   `yaml:"tls"`
	TLSCert   string `yaml:"tls_cert"`
	TLSKey    string `yaml:"tls_key"`
	TLSDomain string `yaml:"tls_domain"`
	CertDir   string `yaml:"cert_dir"`

	StorePath string `yaml:"store_path"` // bbolt world+accounts database
	WorldDir  string `yaml:"world_dir"`  // world definition files
	SourceDir string `yaml:"source_dir"` // G sources for load/reload
	TextDir   string `yaml:"text_dir"`   // welcome/motd/quit text files

	ScrollbackPath      string `yaml:"scrollback_path"`
	ScrollbackRetention int    `yaml:"scrollback_retention_seconds"`

	AdminLogin    string `yaml:"admin_login"`
	AdminPassword string `yaml:"admin_password"`

	JWTSecret string `yaml:"jwt_secret"`
	JWTExpiry int    `yaml:"jwt_expiry_seconds"`

	FlushIntervalSec int `yaml:"flush_interval_seconds"`
	DirtyThreshold   int `yaml:"dirty_threshold"`
	DepthLimit       int `yaml:"depth_limit"`
	BudgetMillis     int `yaml:"budget_millis"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	return &Config{
		TelnetPort:          8888,
		WebSocketPort:       4000,
		StorePath:           "gaia.db",
		CertDir:             "certs",
		ScrollbackRetention: int((24 * time.Hour).Seconds()),
		JWTExpiry:           int((24 * time.Hour).Seconds()),
		FlushIntervalSec:    60,
		DirtyThreshold:      200,
		DepthLimit:          128,
		BudgetMillis:        500,
		AdminLogin:          "admin",
	}
}

// LoadConfig reads YAML over the defaults. A missing file is not an
// error; the defaults stand.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("game: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("game: parse config %s: %w", path, err)
	}
	return cfg, nil
}

// readSource fetches a named G source file from the source directory,
// refusing paths that escape it.
func (gm *Game) readSource(name string) (string, error) {
	if gm.Cfg.SourceDir == "" {
		return "", fmt.Errorf("game: no source directory configured")
	}
	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("game: source path %q escapes the source directory", name)
	}
	data, err := os.ReadFile(filepath.Join(gm.Cfg.SourceDir, clean))
	if err != nil {
		return "", fmt.Errorf("game: read source %s: %w", name, err)
	}
	return string(data), nil
}

// SyncConfigObject publishes the live configuration as attributes of
// #config so G code can read it, and applies #config overrides for the
// interpreter bounds.
func (gm *Game) SyncConfigObject() error {
	obj, err := gm.Cache.Get(ConfigID)
	if err != nil {
		obj = world.NewObject(ConfigID, world.RootID)
		obj.Name = "config"
	} else {
		obj = obj.Clone()
	}

	// Overrides in the world win over file configuration.
	if v, ok := obj.GetOwn("depth_limit"); ok {
		if n := int(world.ToNumber(v)); n > 0 {
			gm.Cfg.DepthLimit = n
		}
	}
	if v, ok := obj.GetOwn("budget_millis"); ok {
		if n := int(world.ToNumber(v)); n > 0 {
			gm.Cfg.BudgetMillis = n
		}
	}

	obj.SetAttr("telnet_port", float64(gm.Cfg.TelnetPort))
	obj.SetAttr("websocket_port", float64(gm.Cfg.WebSocketPort))
	obj.SetAttr("depth_limit", float64(gm.Cfg.DepthLimit))
	obj.SetAttr("budget_millis", float64(gm.Cfg.BudgetMillis))
	obj.SetAttr("flush_interval_seconds", float64(gm.Cfg.FlushIntervalSec))
	return gm.Cache.Put(obj)
}
