package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"stockline/internal/api"
)

// Config models stockline.yml.
type Config struct {
	API struct {
		Base string `yaml:"base"`
	} `yaml:"api"`
	Auth struct {
		URL     string `yaml:"url"`
		AnonKey string `yaml:"anon_key"`
	} `yaml:"auth"`
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run sl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures every network-capable operation can fail closed before a
// request is attempted.
func (c *Config) Validate() error {
	base, err := NormalizeBase(c.API.Base)
	if err != nil {
		return err
	}
	c.API.Base = base
	if c.Auth.URL != "" {
		if _, err := url.Parse(c.Auth.URL); err != nil {
			return fmt.Errorf("config.auth.url: %w", err)
		}
	}
	return nil
}

// NormalizeBase trims trailing slashes and requires a well-formed https URL.
// An empty or insecure base is a ConfigError, not a fallback.
func NormalizeBase(raw string) (string, error) {
	b := strings.TrimRight(strings.TrimSpace(raw), "/")
	if b == "" {
		return "", &api.ConfigError{Reason: "api base is empty"}
	}
	u, err := url.Parse(b)
	if err != nil {
		return "", &api.ConfigError{Reason: fmt.Sprintf("api base %q is not a valid URL", raw)}
	}
	if !strings.EqualFold(u.Scheme, "https") || u.Host == "" {
		return "", &api.ConfigError{Reason: fmt.Sprintf("api base must be https://, got %q", raw)}
	}
	return b, nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "stockline.yml")
}

// GenerateDefault returns default config YAML for a base endpoint.
func GenerateDefault(base string) string {
	return fmt.Sprintf(defaultTemplate, base)
}

const defaultTemplate = `api:
  base: %s

auth:
  url: ""
  anon_key: ""
`
