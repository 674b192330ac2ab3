// Zaparoo Eject
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Eject.
//
// Zaparoo Eject is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Eject is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Eject.  If not, see <http://www.gnu.org/licenses/>.

// Package config loads and saves the TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-eject/pkg/helpers/syncutil"
	"github.com/adrg/xdg"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgEnv        = "ZAPAROO_EJECT_CFG"
	AppName       = "zaparoo-eject"
	CfgFile       = "config.toml"
	LogFile       = "eject.log"
	AppVersion    = "0.3.0"
)

const (
	MountSourceProc     = "proc"
	MountSourceGopsutil = "gopsutil"
	MetadataUDisks      = "udisks"
	MetadataUdev        = "udev"
)

type Values struct {
	Devices      Devices `toml:"devices"`
	Actions      Actions `toml:"actions"`
	ConfigSchema int     `toml:"config_schema"`
	DebugLogging bool    `toml:"debug_logging"`
}

type Devices struct {
	MountSource      string   `toml:"mount_source" validate:"oneof=proc gopsutil"`
	MountTable       string   `toml:"mount_table" validate:"omitempty,startswith=/"`
	HostMirrorPrefix string   `toml:"host_mirror_prefix" validate:"omitempty,startswith=/"`
	DefaultKind      string   `toml:"default_kind" validate:"oneof=usb disk"`
	MediaDirs        []string `toml:"media_dirs,multiline" validate:"dive,startswith=/"`
	Metadata         []string `toml:"metadata" validate:"dive,oneof=udisks udev"`
	Blkid            bool     `toml:"blkid"`
	IncludeNetwork   bool     `toml:"include_network"`
}

type Actions struct {
	UnmountCommand string `toml:"unmount_command" validate:"required"`
	OpenCommand    string `toml:"open_command" validate:"required"`
	Sandbox        string `toml:"sandbox" validate:"oneof=auto host none"`
	Broker         string `toml:"broker" validate:"required"`
	Timeout        string `toml:"timeout" validate:"duration"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Devices: Devices{
		MountSource:      MountSourceProc,
		MountTable:       "/proc/mounts",
		HostMirrorPrefix: "/run/host/",
		DefaultKind:      "usb",
		MediaDirs:        []string{"/run/media/", "/media/"},
		Metadata:         []string{MetadataUDisks, MetadataUdev},
		Blkid:            true,
	},
	Actions: Actions{
		UnmountCommand: "umount",
		OpenCommand:    "xdg-open",
		Sandbox:        "auto",
		Broker:         "flatpak-spawn",
		Timeout:        "30s",
	},
}

// DefaultDir is the per-user config directory.
func DefaultDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// LogDir is where the rotating log file is written.
func LogDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

type Instance struct {
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

// NewConfig loads the config file from configDir, or the path in CfgEnv,
// writing defaults first when the file does not exist.
//
//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")

		err := os.MkdirAll(filepath.Dir(cfgPath), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		err = cfg.Save()
		if err != nil {
			return nil, err
		}
	}

	err := cfg.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Path returns the config file path.
func (c *Instance) Path() string {
	return c.cfgPath
}

// Load re-reads the config file. On any error the previous values are kept.
func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then unmarshal file values on top.
	// This ensures fields not present in the file retain their default values.
	newVals := c.defaults
	newVals.Devices.MediaDirs = nil
	newVals.Devices.Metadata = nil
	err = toml.Unmarshal(data, &newVals)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if newVals.Devices.MediaDirs == nil {
		newVals.Devices.MediaDirs = c.defaults.Devices.MediaDirs
	}
	if newVals.Devices.Metadata == nil {
		newVals.Devices.Metadata = c.defaults.Devices.Metadata
	}
	newVals.Devices.MediaDirs = dirPrefixes(newVals.Devices.MediaDirs)
	newVals.Devices.HostMirrorPrefix = dirPrefix(newVals.Devices.HostMirrorPrefix)

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return errors.New("schema version mismatch")
	}

	if err := Validate(&newVals); err != nil {
		return err
	}

	c.vals = newVals
	return nil
}

// dirPrefix adds the trailing slash prefix matching relies on, so "/media"
// does not also match "/mediafoo".
func dirPrefix(dir string) string {
	if dir == "" || strings.HasSuffix(dir, "/") {
		return dir
	}
	return dir + "/"
}

func dirPrefixes(dirs []string) []string {
	out := make([]string, len(dirs))
	for i, d := range dirs {
		out[i] = dirPrefix(d)
	}
	return out
}

// Save writes the current values to the config file.
func (c *Instance) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	//nolint:gosec // config file is user-readable by design
	if err := os.WriteFile(c.cfgPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
}

// Devices returns a copy of the device discovery settings.
func (c *Instance) Devices() Devices {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d := c.vals.Devices
	d.MediaDirs = append([]string(nil), d.MediaDirs...)
	d.Metadata = append([]string(nil), d.Metadata...)
	return d
}

// Actions returns a copy of the action settings.
func (c *Instance) Actions() Actions {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Actions
}

// ActionTimeout parses actions.timeout. Load has already validated it.
func (c *Instance) ActionTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, err := time.ParseDuration(c.vals.Actions.Timeout)
	if err != nil {
		return 0
	}
	return d
}
