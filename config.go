// Copyright 2026 The Wiregraph Authors
// SPDX-License-Identifier: Apache-2.0

package wiregraph

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfigFile reads a YAML file into a Config, starting from
// defaultConfig so unset fields keep their defaults rather than zeroing
// out. Hooks (WithOnMember...) are not representable in YAML and must be
// layered on afterward with NewFromConfig's opts.
func LoadConfigFile(path string) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("wiregraph: reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("wiregraph: parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// NewFromConfig builds an Engine from a Config already loaded (typically
// via LoadConfigFile), with any additional Options layered on top -- the
// only way to attach lifecycle hooks to a file-loaded Config, since those
// are Go closures with no YAML representation.
func NewFromConfig(cfg Config, opts ...Option) *Engine {
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{config: cfg}
}
