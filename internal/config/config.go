// Package config loads engine settings from a YAML file for the cmd/
// binaries. The engine itself takes plain parameters; this layer only exists
// so operators do not have to pass a dozen flags.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Path              string `yaml:"path"`
	MinimumFreeGB     int    `yaml:"minimumFreeGB"`
	BranchFactor      int    `yaml:"branchFactor"`
	CacheCapacity     int    `yaml:"cacheCapacity"`
	BuildTimeoutMs    int    `yaml:"buildTimeoutMs"`
	GCIntervalMinutes int    `yaml:"gcIntervalMinutes"`
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}

	config.applyDefaults()
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Path == "" {
		c.Path = "merkledoc-data"
	}
	if c.MinimumFreeGB == 0 {
		c.MinimumFreeGB = 1
	}
	if c.BranchFactor == 0 {
		c.BranchFactor = 100
	}
	if c.CacheCapacity == 0 {
		c.CacheCapacity = 50_000
	}
	if c.GCIntervalMinutes == 0 {
		c.GCIntervalMinutes = 10
	}
}

func (c Config) BuildTimeout() time.Duration {
	return time.Duration(c.BuildTimeoutMs) * time.Millisecond
}

func (c Config) GCInterval() time.Duration {
	return time.Duration(c.GCIntervalMinutes) * time.Minute
}
