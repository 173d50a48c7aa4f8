package jsonlcli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Config is the saved set of stream servers the CLI knows about.
type Config struct {
	CurrentContext string             `yaml:"currentContext" json:"currentContext"`
	Contexts       map[string]Context `yaml:"contexts" json:"contexts"`
}

// Context holds connection settings for one stream server.
type Context struct {
	Name   string `yaml:"name" json:"name"`
	Server string `yaml:"server" json:"server"`
	Token  string `yaml:"token,omitempty" json:"token,omitempty"`
}

// Overrides are connection settings given as flags. They win over the saved
// context they are applied to.
type Overrides struct {
	Context string
	Server  string
	Token   string
}

// LoadConfig reads path. A missing file is an empty configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if cfg.Contexts == nil {
		cfg.Contexts = map[string]Context{}
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, readable by the owner only since contexts
// may carry tokens.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./jsonl-config.yaml"
	}
	return filepath.Join(dir, "jsonl", "config.yaml")
}

// Set stores ctx. The first context saved always becomes current.
func (cfg *Config) Set(ctx Context, makeCurrent bool) {
	if cfg.Contexts == nil {
		cfg.Contexts = map[string]Context{}
	}
	cfg.Contexts[ctx.Name] = ctx
	if cfg.CurrentContext == "" || makeCurrent {
		cfg.CurrentContext = ctx.Name
	}
}

// Use switches the current context to name.
func (cfg *Config) Use(name string) error {
	if _, ok := cfg.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	cfg.CurrentContext = name
	return nil
}

// Names lists the saved contexts in order.
func (cfg *Config) Names() []string {
	names := make([]string, 0, len(cfg.Contexts))
	for name := range cfg.Contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the context to connect with: the one named by o.Context,
// else the current one, with o's server and token on top. A server override
// needs no saved context unless one is named explicitly.
func (cfg *Config) Resolve(o Overrides) (Context, error) {
	name := o.Context
	if name == "" {
		name = cfg.CurrentContext
	}
	ctx, ok := cfg.Contexts[name]
	if !ok && (o.Context != "" || o.Server == "") {
		return Context{}, fmt.Errorf("context %q not found; use 'jsonl config set-context'", name)
	}
	if o.Server != "" {
		ctx.Server = o.Server
	}
	if o.Token != "" {
		ctx.Token = o.Token
	}
	if ctx.Server == "" {
		return Context{}, fmt.Errorf("context %q is missing a server URL", name)
	}
	return ctx, nil
}
