package editor

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/zhuczhuc/trame-slicer-sub000/slicer"
)

// Config holds the TOML-configurable settings of a segmentation editor.
//
// Example:
//
//	[logging]
//	logfile = "/var/log/segmentation.log"
//	max_log_size = 500  # MB
//	max_log_age = 30    # days
//
//	[undo]
//	limit = 100
//
//	[cache]
//	region_mask_mb = 32
//
//	[editlog]
//	path = "edits.log"
type Config struct {
	Logging slicer.LogConfig `toml:"logging"`
	Undo    UndoConfig       `toml:"undo"`
	Cache   CacheConfig      `toml:"cache"`
	EditLog EditLogConfig    `toml:"editlog"`

	// inferred from the config file location, used to resolve relative paths
	baseDir string
}

// UndoConfig bounds the history.  A zero limit keeps unlimited history.
type UndoConfig struct {
	Limit int `toml:"limit"`
}

// CacheConfig sizes the region mask cache.  Zero picks the default.
type CacheConfig struct {
	RegionMaskMB int `toml:"region_mask_mb"`
}

// EditLogConfig names an optional append-only edit log file.  Empty disables
// edit logging.
type EditLogConfig struct {
	Path string `toml:"path"`
}

// LoadConfig reads editor settings from a TOML file.  Relative file paths in
// the config are taken relative to the config file's directory.
func LoadConfig(path string) (*Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	c.baseDir = filepath.Dir(path)
	if err := c.convertPathsToAbsolute(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) convertPathsToAbsolute() error {
	var err error
	if c.Logging.Logfile != "" {
		c.Logging.Logfile, err = slicer.ConvertToAbsolute(c.Logging.Logfile, c.baseDir)
		if err != nil {
			return fmt.Errorf("unable to convert logfile path: %v", err)
		}
	}
	if c.EditLog.Path != "" {
		c.EditLog.Path, err = slicer.ConvertToAbsolute(c.EditLog.Path, c.baseDir)
		if err != nil {
			return fmt.Errorf("unable to convert edit log path: %v", err)
		}
	}
	return nil
}

// SetupLogging initializes the rotating file logger from this config.
func (c *Config) SetupLogging() {
	c.Logging.SetLogger()
}
