package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/munsocial/graphbench/internal/activity"
	"github.com/munsocial/graphbench/internal/config"
	"github.com/munsocial/graphbench/internal/storage"
)

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Activity.Backend = "redis"

	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestNew_CreatesDirectories(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir() + "/nested"

	a, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.DataDir+"/mun_social.db", a.cfg.SQLite.Path)
	assert.DirExists(t, cfg.Storage.Path)
}

func TestNewActivityLog_Memory(t *testing.T) {
	log, err := newActivityLog(context.Background(), config.ActivityConfig{Backend: config.ActivityBackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &activity.MemoryLog{}, log)
	assert.NoError(t, log.Close(context.Background()))

	_, err = newActivityLog(context.Background(), config.ActivityConfig{Backend: "redis"})
	assert.Error(t, err)
}

func TestNewStorage_Local(t *testing.T) {
	store, err := newStorage(context.Background(), config.StorageConfig{Type: "local", Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalStorage{}, store)

	_, err = newStorage(context.Background(), config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}

func TestStop_NotRunning(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	a, err := New(cfg, nil)
	require.NoError(t, err)
	assert.NoError(t, a.Stop(context.Background()))
}
