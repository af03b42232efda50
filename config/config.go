// Package config loads the AllPress TOML configuration from the standard
// platform locations.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Settings is the full configuration surface.
type Settings struct {
	Queue     QueueSettings     `toml:"queue"`
	Discovery DiscoverySettings `toml:"discovery"`
	Network   NetworkSettings   `toml:"network"`
	Spooler   SpoolerSettings   `toml:"spooler"`
	Server    ServerSettings    `toml:"server"`
	Log       LogSettings       `toml:"log"`
	Database  DatabaseSettings  `toml:"database"`
}

type QueueSettings struct {
	MaxWorkers    int `toml:"max_workers"`
	MaxQueueDepth int `toml:"max_queue_depth"`
}

type DiscoverySettings struct {
	Subnet    string `toml:"subnet"`
	TimeoutMS int    `toml:"timeout_ms"`
	// MonitorIntervalS is the printer status monitoring cadence in seconds.
	MonitorIntervalS int `toml:"monitor_interval_s"`
}

type NetworkSettings struct {
	DialTimeoutMS int `toml:"dial_timeout_ms"`
}

type SpoolerSettings struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	Community string `toml:"snmp_community"`
}

type ServerSettings struct {
	Listen string `toml:"listen"`
}

type LogSettings struct {
	Level string `toml:"level"`
	Dir   string `toml:"dir"`
}

type DatabaseSettings struct {
	Path string `toml:"path"`
}

// Defaults returns the baked-in configuration.
func Defaults() Settings {
	return Settings{
		Queue:     QueueSettings{MaxWorkers: 4},
		Discovery: DiscoverySettings{Subnet: "192.168.1", TimeoutMS: 5000, MonitorIntervalS: 30},
		Network:   NetworkSettings{DialTimeoutMS: 2000},
		Spooler:   SpoolerSettings{Host: "localhost", Port: 631, Community: "public"},
		Server:    ServerSettings{Listen: ":8970"},
		Log:       LogSettings{Level: "info", Dir: "logs"},
	}
}

// SearchPaths returns the ordered list of locations probed for the config
// file: system directory, user config directory, executable directory,
// working directory.
func SearchPaths(filename string) []string {
	var paths []string

	switch runtime.GOOS {
	case "windows":
		paths = append(paths, filepath.Join(os.Getenv("ProgramData"), "AllPress", filename))
	case "darwin":
		paths = append(paths, filepath.Join("/Library/Application Support", "AllPress", filename))
	default:
		paths = append(paths, filepath.Join("/etc/allpress", filename))
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		switch runtime.GOOS {
		case "windows":
			paths = append(paths, filepath.Join(homeDir, "AppData", "Local", "AllPress", filename))
		case "darwin":
			paths = append(paths, filepath.Join(homeDir, "Library", "Application Support", "AllPress", filename))
		default:
			paths = append(paths, filepath.Join(homeDir, ".config", "allpress", filename))
		}
	}

	if exePath, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exePath), filename))
	}
	paths = append(paths, filepath.Join(".", filename))
	return paths
}

// Load reads the first config file found in the search paths, layered over
// the defaults. A missing file is not an error; the defaults apply.
func Load(filename string) (Settings, string, error) {
	s := Defaults()
	for _, path := range SearchPaths(filename) {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := toml.Unmarshal(data, &s); err != nil {
			return s, path, fmt.Errorf("parse %s: %w", path, err)
		}
		s.normalize()
		return s, path, nil
	}
	s.normalize()
	return s, "", nil
}

// LoadFile reads one specific config file layered over the defaults.
func LoadFile(path string) (Settings, error) {
	s := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse %s: %w", path, err)
	}
	s.normalize()
	return s, nil
}

// Save writes the settings as TOML, creating parent directories as needed.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func (s *Settings) normalize() {
	d := Defaults()
	if s.Queue.MaxWorkers <= 0 {
		s.Queue.MaxWorkers = d.Queue.MaxWorkers
	}
	if s.Discovery.Subnet == "" {
		s.Discovery.Subnet = d.Discovery.Subnet
	}
	if s.Discovery.TimeoutMS <= 0 {
		s.Discovery.TimeoutMS = d.Discovery.TimeoutMS
	}
	if s.Discovery.MonitorIntervalS <= 0 {
		s.Discovery.MonitorIntervalS = d.Discovery.MonitorIntervalS
	}
	if s.Network.DialTimeoutMS <= 0 {
		s.Network.DialTimeoutMS = d.Network.DialTimeoutMS
	}
	if s.Spooler.Host == "" {
		s.Spooler.Host = d.Spooler.Host
	}
	if s.Spooler.Port <= 0 {
		s.Spooler.Port = d.Spooler.Port
	}
	if s.Spooler.Community == "" {
		s.Spooler.Community = d.Spooler.Community
	}
	if s.Server.Listen == "" {
		s.Server.Listen = d.Server.Listen
	}
	if s.Log.Level == "" {
		s.Log.Level = d.Log.Level
	}
}
