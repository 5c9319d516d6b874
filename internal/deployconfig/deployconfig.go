// Package deployconfig parses the YAML document describing a split
// deployment: the service name, the application binary location and the
// set of nodes execution can be placed on.
package deployconfig

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is one deployment description. Unknown fields are rejected at
// parse time.
type Config struct {
	// Name of the service. Required, non-empty.
	Name string `yaml:"name"`
	// App locates the application to deploy.
	App AppConfig `yaml:"app"`
	// Nodes execution can be placed on, keyed by node name. Required,
	// non-empty; deployment-target tags resolve against these keys.
	Nodes map[string]NodeConfig `yaml:"nodes"`
	// Cluster tunes cluster-wide behavior. Optional; zero values take
	// defaults.
	Cluster ClusterConfig `yaml:"cluster"`

	// dir is the directory the config file was loaded from; relative
	// app paths resolve against it.
	dir string
}

// AppConfig locates the application binary. Exactly one of Path or URL
// must be set.
type AppConfig struct {
	Path string `yaml:"path"`
	URL  string `yaml:"url"`
}

// NodeConfig describes one placement node.
type NodeConfig struct {
	Address string `yaml:"address"`
}

// ClusterConfig tunes cluster-wide behavior.
type ClusterConfig struct {
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
}

// HeartbeatConfig is the health-check policy between nodes.
type HeartbeatConfig struct {
	// IntervalMS between heartbeats. 0 takes DefaultHeartbeatIntervalMS.
	IntervalMS uint64 `yaml:"interval_ms"`
}

const DefaultHeartbeatIntervalMS = 1000

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open deploy config: %w", err)
	}
	defer f.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve deploy config path: %w", err)
	}
	return Parse(f, filepath.Dir(abs))
}

// Parse decodes a config document from r. dir is the directory relative
// app paths resolve against.
func Parse(r io.Reader, dir string) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse deploy config: %w", err)
	}
	cfg.dir = dir
	if cfg.Cluster.Heartbeat.IntervalMS == 0 {
		cfg.Cluster.Heartbeat.IntervalMS = DefaultHeartbeatIntervalMS
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid deploy config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(c.Nodes) == 0 {
		return fmt.Errorf("at least one node is required")
	}
	for name, node := range c.Nodes {
		if name == "" {
			return fmt.Errorf("node name must not be empty")
		}
		if node.Address == "" {
			return fmt.Errorf("node %q: address must not be empty", name)
		}
	}
	if c.App.Path != "" && c.App.URL != "" {
		return fmt.Errorf("only one of app.path or app.url can be set")
	}
	if c.App.Path == "" && c.App.URL == "" {
		return fmt.Errorf("one of app.path or app.url must be set")
	}
	return nil
}

// AppLocation returns the app's path resolved against the config file
// directory, or its URL if the app is remote.
func (c *Config) AppLocation() string {
	if c.App.Path != "" {
		if filepath.IsAbs(c.App.Path) || c.dir == "" {
			return c.App.Path
		}
		return filepath.Join(c.dir, c.App.Path)
	}
	return c.App.URL
}

// Node returns the named node's config.
func (c *Config) Node(name string) (NodeConfig, bool) {
	node, ok := c.Nodes[name]
	return node, ok
}
