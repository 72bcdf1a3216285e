package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

type ConnectionConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
}

// DecompressConfig selects how each file is turned into a byte stream.
type DecompressConfig struct {
	Mode    string   `yaml:"mode,omitempty"` // process | builtin
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
}

// FormatConfig mirrors the COPY options of the delimited row format.
type FormatConfig struct {
	Delimiter string   `yaml:"delimiter,omitempty"`
	Header    *bool    `yaml:"header,omitempty"`
	Null      string   `yaml:"null_string,omitempty"` // "null" is a YAML keyword
	Columns   []string `yaml:"columns,omitempty"`
}

type ProjectConfig struct {
	Connection   ConnectionConfig `yaml:"connection"`
	Table        string           `yaml:"table"`
	Path         string           `yaml:"path"`
	Pattern      string           `yaml:"pattern"`
	Decompressor DecompressConfig `yaml:"decompressor"`
	Format       FormatConfig     `yaml:"format"`
	Timeout      string           `yaml:"timeout"`
	MetricsFile  string           `yaml:"metrics_file"`
}

const ConfigFileName = "pgbulk.yaml"

// Load reads ConfigFileName from dir.
func Load(dir string) (*ProjectConfig, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads a project config from an explicit path.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}
