package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadAppliesDefaults(t *testing.T) {
	writeConfig(t, `
browser:
  profile_path: /home/op/.autoposter/profile
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://www.facebook.com/marketplace/create/item", cfg.Marketplace.CreateURL)
	assert.Equal(t, 5*time.Minute, cfg.Marketplace.LoginWait())
	assert.False(t, cfg.Marketplace.AutoJoinFirstGroup)
	assert.Equal(t, 60*time.Second, cfg.Scheduler.MinDelay())
	assert.Equal(t, 180*time.Second, cfg.Scheduler.MaxDelay())
	assert.Equal(t, 50, cfg.Typing.MinCharDelayMs)
	assert.Equal(t, 150, cfg.Typing.MaxCharDelayMs)
	assert.Equal(t, "autoposter", cfg.Database.Name)
	assert.Equal(t, "autoposter_consumer", cfg.Redis.ConsumerGroup)
}

func TestLoadOverridesFromFile(t *testing.T) {
	writeConfig(t, `
browser:
  profile_path: /srv/profile
scheduler:
  min_delay_seconds: 90
  max_delay_seconds: 240
marketplace:
  auto_join_first_group: true
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/profile", cfg.Browser.ProfilePath)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.MinDelay())
	assert.Equal(t, 240*time.Second, cfg.Scheduler.MaxDelay())
	assert.True(t, cfg.Marketplace.AutoJoinFirstGroup)
}

func TestLoadRejectsMissingProfilePath(t *testing.T) {
	writeConfig(t, `
scheduler:
  min_delay_seconds: 60
`)

	_, err := Load()
	assert.ErrorContains(t, err, "profile_path")
}

func TestLoadRejectsInvertedDelays(t *testing.T) {
	writeConfig(t, `
browser:
  profile_path: /srv/profile
scheduler:
  min_delay_seconds: 120
  max_delay_seconds: 30
`)

	_, err := Load()
	assert.ErrorContains(t, err, "delays")
}

func TestLoadFailsWithoutConfigFile(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err = Load()
	assert.Error(t, err)
}
