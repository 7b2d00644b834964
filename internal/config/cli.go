package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

const appName = "classattend"

// CLI is the attendctl configuration file.
type CLI struct {
	Database string `toml:"database"`
	Teacher  string `toml:"teacher"`
	Timezone string `toml:"timezone"`
}

// DefaultCLI returns the settings used when no file exists.
func DefaultCLI() CLI {
	return CLI{Database: DefaultDBPath()}
}

// DefaultCLIConfigPath is $XDG_CONFIG_HOME/classattend/config.toml.
func DefaultCLIConfigPath() string {
	return filepath.Join(XDGConfigHome(), appName, "config.toml")
}

// DefaultDBPath is $XDG_DATA_HOME/classattend/attendance.db.
func DefaultDBPath() string {
	return filepath.Join(XDGDataHome(), appName, "attendance.db")
}

// LoadCLI reads path over DefaultCLI. A missing file is not an error.
func LoadCLI(path string) (CLI, error) {
	cfg := DefaultCLI()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return CLI{}, errors.Wrap(err, "stat config")
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return CLI{}, errors.Wrapf(err, "parse %s", path)
	}
	if cfg.Database == "" {
		cfg.Database = DefaultCLI().Database
	}
	return cfg, nil
}

// SaveCLI writes cfg to path, creating its directory.
func SaveCLI(path string, cfg CLI) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create config file")
	}
	defer f.Close()
	return errors.Wrap(toml.NewEncoder(f).Encode(cfg), "encode config")
}

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}
