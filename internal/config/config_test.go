package config_test

import (
	"testing"

	"github.com/mna/mica/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, 256, cfg.MaxRegisters)
	require.Equal(t, 64, cfg.MaxFrames)
	require.Equal(t, 64, cfg.MaxNatives)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MICA_MAX_NATIVES", "8")
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, 8, cfg.MaxNatives)
}

func TestValidateRejectsRegistersAboveCeiling(t *testing.T) {
	cfg := config.VM{MaxRegisters: 1000, MaxFrames: 64, MaxNatives: 64}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsFramesAboveCeiling(t *testing.T) {
	cfg := config.VM{MaxRegisters: 256, MaxFrames: 1000, MaxNatives: 64}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeNatives(t *testing.T) {
	cfg := config.VM{MaxRegisters: 256, MaxFrames: 64, MaxNatives: -1}
	require.Error(t, cfg.Validate())
}
