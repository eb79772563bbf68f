// Copyright 2026 The Wiregraph Authors
// SPDX-License-Identifier: Apache-2.0

package wiregraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFile_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wiregraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_depth: 5\ndisallow_buffering: true\n"), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxDepth)
	assert.True(t, cfg.DisallowBuffering)
}

func TestLoadConfigFile_MissingFileErrors(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewFromConfig_LayersOptionsOverFileConfig(t *testing.T) {
	cfg := Config{MaxDepth: 5}
	var fired bool
	e := NewFromConfig(cfg, WithOnMemberSerializing(func(MemberEvent) { fired = true }))

	_, err := e.SerializeBytes(struct {
		V uint8 `wire:"order=0"`
	}{V: 1})
	require.NoError(t, err)
	assert.True(t, fired)
}
