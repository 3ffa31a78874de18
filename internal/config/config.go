// Package config loads the multi-device registry and credential layer
// klapctl runs on top of. It is supplementary to spec.md: the spec
// describes the "Configuration" surface abstractly as
// {host, port, credentials, timeout_seconds} per transport; this package
// makes that concrete for a CLI juggling several devices at once.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/abhishek/klap/internal/credentials"
)

// DeviceEntry is one row of the devices.yaml registry.
type DeviceEntry struct {
	Name           string `yaml:"name"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Variant        string `yaml:"variant"` // "v1" or "v2"; klap-only
	CredentialsRef string `yaml:"credentials_ref"`
	Legacy         bool   `yaml:"legacy"` // true selects the XOR transport
}

// Registry is the decoded devices.yaml contents.
type Registry struct {
	Devices []DeviceEntry `yaml:"devices"`
}

// LoadRegistry reads and parses a devices.yaml file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read registry %s: %w", path, err)
	}
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("config: parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// Find returns the entry named name, or false if no entry matches.
func (r *Registry) Find(name string) (DeviceEntry, bool) {
	for _, d := range r.Devices {
		if d.Name == name {
			return d, true
		}
	}
	return DeviceEntry{}, false
}

// Settings is the fully resolved configuration for a single transport
// invocation, after layering flags, environment, .env file, and viper
// config-file values (in that precedence order, highest first).
type Settings struct {
	Host       string
	Port       int
	Legacy     bool
	Variant    string
	Creds      credentials.Credentials
	Timeout    time.Duration
	ConfigFile string
	JournalDB  string
	MetricsAddr string
	Debug      bool
}

// LoadEnv loads KLAP_USERNAME/KLAP_PASSWORD (and anything else in a
// local .env file) into the process environment before viper resolves
// flags, generalizing the teacher's os.Getenv("TAPO_USERNAME") fallback
// in cmd/p110/main.go to a full .env layer. A missing .env file is not
// an error: most deployments rely on real environment variables or
// flags instead.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// BindViper wires the KLAP_ environment prefix and an optional config
// file into v, mirroring the layered precedence (flags > env > file)
// every cobra+viper CLI in the pack uses.
func BindViper(v *viper.Viper, configFile string) error {
	v.SetEnvPrefix("KLAP")
	v.AutomaticEnv()

	if configFile == "" {
		return nil
	}
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: read config file %s: %w", configFile, err)
	}
	return nil
}

// ResolveCredentials builds a Credentials value from viper-bound
// username/password, falling back to credentials.Blank when neither is
// set (spec.md §4.3.1: blank credentials are a legitimate trial-ladder
// entry, not an error).
func ResolveCredentials(v *viper.Viper) credentials.Credentials {
	username := v.GetString("username")
	password := v.GetString("password")
	if username == "" && password == "" {
		return credentials.Blank
	}
	return credentials.Credentials{Username: username, Password: password}
}
