// Package config handles YAML-based persistence of ADS connection
// profiles. Trimmed from the teacher's multi-protocol application config
// (PLC/MQTT/Kafka/Valkey/rule/web layers removed) down to the single
// concern this module needs: naming a set of ADS targets and the
// per-target connection knobs spec.md §6 exposes as functional options.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigListenerID is a unique identifier for a config change listener.
type ConfigListenerID string

// Config holds a named set of ADS connection profiles.
type Config struct {
	Namespace string       `yaml:"namespace"`
	Targets   []PLCConfig  `yaml:"targets"`

	dataMu sync.Mutex `yaml:"-"`

	changeListeners map[ConfigListenerID]func() `yaml:"-"`
	listenersMu     sync.RWMutex                `yaml:"-"`
	listenerCounter uint64                       `yaml:"-"`
}

// PLCConfig stores the connection profile for a single ADS target,
// mirroring the spec.md §6 functional-option surface so a loaded profile
// maps directly onto a slice of ads.Option values.
type PLCConfig struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`

	AmsNetId string `yaml:"ams_net_id"` // e.g. "192.168.1.100.1.1"
	AmsPort  uint16 `yaml:"ams_port"`   // e.g. 851 for TwinCAT 3 PLC runtime 1

	RouterAddress string `yaml:"router_address,omitempty"` // default 127.0.0.1
	RouterTCPPort uint16 `yaml:"router_tcp_port,omitempty"` // default 48898

	Timeout             time.Duration `yaml:"timeout,omitempty"`
	AutoReconnect       *bool         `yaml:"auto_reconnect,omitempty"`
	ReconnectInterval   time.Duration `yaml:"reconnect_interval,omitempty"`
	CheckStateInterval  time.Duration `yaml:"check_state_interval,omitempty"`
	ConnectionDownDelay time.Duration `yaml:"connection_down_delay,omitempty"`
}

// IsAutoReconnectEnabled returns whether automatic reconnection is
// enabled for this target (defaults to true).
func (p *PLCConfig) IsAutoReconnectEnabled() bool {
	if p.AutoReconnect == nil {
		return true
	}
	return *p.AutoReconnect
}

// DefaultConfig returns an empty configuration.
func DefaultConfig() *Config {
	return &Config{Targets: []PLCConfig{}}
}

// DefaultPath returns the default configuration file path
// (~/.ads-client/config.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".ads-client", "config.yaml")
}

// Load reads configuration from a YAML file, returning defaults if the
// file does not yet exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AddOnChangeListener registers a callback invoked after every Save.
func (c *Config) AddOnChangeListener(cb func()) ConfigListenerID {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	if c.changeListeners == nil {
		c.changeListeners = make(map[ConfigListenerID]func())
	}
	c.listenerCounter++
	id := ConfigListenerID(fmt.Sprintf("listener-%d", c.listenerCounter))
	c.changeListeners[id] = cb
	return id
}

// RemoveOnChangeListener removes a previously registered listener.
func (c *Config) RemoveOnChangeListener(id ConfigListenerID) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	delete(c.changeListeners, id)
}

func (c *Config) notifyChangeListeners() {
	c.listenersMu.RLock()
	listeners := make([]func(), 0, len(c.changeListeners))
	for _, cb := range c.changeListeners {
		listeners = append(listeners, cb)
	}
	c.listenersMu.RUnlock()

	for _, cb := range listeners {
		go cb()
	}
}

// Lock acquires the config data mutex for exclusive access.
func (c *Config) Lock() { c.dataMu.Lock() }

// Unlock releases the config data mutex without saving.
func (c *Config) Unlock() { c.dataMu.Unlock() }

// Save marshals and writes the config, notifying change listeners.
func (c *Config) Save(path string) error {
	c.dataMu.Lock()
	data, err := yaml.Marshal(c)
	c.dataMu.Unlock()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	c.notifyChangeListeners()
	return nil
}

// FindTarget returns the target config with the given name, or nil.
func (c *Config) FindTarget(name string) *PLCConfig {
	for i := range c.Targets {
		if c.Targets[i].Name == name {
			return &c.Targets[i]
		}
	}
	return nil
}

// AddTarget adds a new target configuration.
func (c *Config) AddTarget(t PLCConfig) {
	c.Targets = append(c.Targets, t)
}

// RemoveTarget removes a target by name.
func (c *Config) RemoveTarget(name string) bool {
	for i, t := range c.Targets {
		if t.Name == name {
			c.Targets = append(c.Targets[:i], c.Targets[i+1:]...)
			return true
		}
	}
	return false
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Namespace != "" && !IsValidNamespace(c.Namespace) {
		return fmt.Errorf("invalid namespace: must contain only alphanumeric characters, hyphens, underscores, and dots")
	}
	for _, t := range c.Targets {
		if t.AmsNetId == "" {
			return fmt.Errorf("target %q: ams_net_id is required", t.Name)
		}
		if t.AmsPort == 0 {
			return fmt.Errorf("target %q: ams_port is required", t.Name)
		}
	}
	return nil
}

// IsValidNamespace returns true if the namespace is valid.
func IsValidNamespace(ns string) bool {
	if ns == "" {
		return false
	}
	for _, r := range ns {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.') {
			return false
		}
	}
	return true
}
