package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
email: user@example.com
password: hunter2
service_id: 1234567
timezone: America/Denver
days_to_fetch: 30
mqtt:
  enabled: true
  broker: "localhost:1883"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", cfg.Email)
	assert.Equal(t, 1234567, cfg.ServiceID)
	assert.Equal(t, 30, cfg.GetDaysToFetch())
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "dropcountr", cfg.MQTT.GetTopicPrefix())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Denver", loc.String())
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.GetDaysToFetch())
	assert.Equal(t, "America/Los_Angeles", cfg.GetTimezone())
}

func TestLoadInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("email: [unterminated"), 0644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestBadTimezone(t *testing.T) {
	cfg := &Config{Timezone: "Mars/Olympus_Mons"}
	_, err := cfg.Location()
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, Save(configPath, &Config{Email: "a@b.c", Period: "hour"}))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", cfg.Email)
	assert.Equal(t, "hour", cfg.Period)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "emial: typo@example.com\n",
		"bad period":       "period: week\n",
		"bad timezone":     "timezone: Mars/Olympus_Mons\n",
		"relative url":     "base_url: dropcountr.com\n",
		"negative days":    "days_to_fetch: -3\n",
		"mqtt sans broker": "mqtt:\n  enabled: true\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

			_, err := Load(configPath)
			assert.Error(t, err)
		})
	}
}

func TestLoadEmptyFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, nil, 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Email)
}
