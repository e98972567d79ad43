package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
database:
  driver: sqlite
  path: ":memory:"
jwt:
  secret: "0123456789abcdef"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.App.Env)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "int", cfg.Identity.KeyKind)
	assert.True(t, cfg.Messaging.HardDeleteEnabled())
	assert.Equal(t, 25, cfg.Messaging.DefaultPageSize)
	assert.Equal(t, 100, cfg.Messaging.MaxPageSize)
	assert.Equal(t, "null", cfg.Broadcast.Driver)
	assert.Equal(t, 5*time.Second, cfg.Broadcast.HTTP.Timeout)
	assert.Equal(t, "ko", cfg.I18n.DefaultLocale)
	assert.False(t, cfg.Editing.Enabled)
	assert.False(t, cfg.Uploads.Enabled)
	assert.Equal(t, int64(20<<20), cfg.Uploads.MaxFileBytes)
	assert.Equal(t, "disk", cfg.Uploads.Driver)
	assert.Equal(t, 60, cfg.RateLimit.WritesPerMinute)
	assert.Equal(t, "messenger:ratelimit:", cfg.RateLimit.KeyPrefix)
}

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
app:
  env: production
server:
  port: 9000
  shutdown_timeout: 30s
database:
  driver: mysql
  host: db.internal
  dbname: messenger
  user: app
messaging:
  hard_delete: false
  default_page_size: 10
  max_page_size: 50
editing:
  enabled: true
  time_limit_minutes: 15
  mark_as_edited: true
  broadcast_edits: true
broadcast:
  enabled: true
  driver: mqtt
  mqtt:
    broker: tcp://mqtt:1883
    qos: 1
jwt:
  secret: "0123456789abcdef"
`))
	require.NoError(t, err)

	assert.True(t, cfg.App.IsProduction())
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.False(t, cfg.Messaging.HardDeleteEnabled())
	assert.Equal(t, 15, cfg.Editing.TimeLimitMinutes)
	assert.Equal(t, byte(1), cfg.Broadcast.MQTT.QoS)
	assert.Equal(t, "messenger", cfg.Broadcast.MQTT.TopicPrefix)
	assert.Equal(t, "app:@tcp(db.internal:3306)/messenger?charset=utf8mb4&parseTime=True&loc=Local", cfg.Database.GetDSN())
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "secret-from-env-123")

	cfg, err := Load(writeConfig(t, `
database:
  driver: sqlite
  path: "${TEST_DB_PATH:-./messenger.db}"
jwt:
  secret: "${TEST_JWT_SECRET}"
`))
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env-123", cfg.JWT.Secret)
	assert.Equal(t, "./messenger.db", cfg.Database.Path)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MESSENGER_SERVER_PORT", "7000")
	t.Setenv("MESSENGER_BROADCAST_DRIVER", "log")
	t.Setenv("MESSENGER_EDITING_ENABLED", "true")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "log", cfg.Broadcast.Driver)
	assert.True(t, cfg.Editing.Enabled)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown driver", minimalConfig + "broadcast:\n  driver: carrier-pigeon\n"},
		{"short jwt secret", "database:\n  driver: sqlite\n  path: x\njwt:\n  secret: short\n"},
		{"mysql without host", "database:\n  driver: mysql\n  dbname: m\njwt:\n  secret: \"0123456789abcdef\"\n"},
		{"pusher without credentials", minimalConfig + "broadcast:\n  driver: pusher\n"},
		{"http relay without url", minimalConfig + "broadcast:\n  driver: http\n"},
		{"redis relay without redis", minimalConfig + "broadcast:\n  driver: redis\n"},
		{"page size above max", minimalConfig + "messaging:\n  default_page_size: 200\n  max_page_size: 100\n"},
		{"disk uploads without dir", minimalConfig + "uploads:\n  enabled: true\n"},
		{"s3 uploads without bucket", minimalConfig + "uploads:\n  enabled: true\n  driver: s3\n"},
		{"unknown uploads driver", minimalConfig + "uploads:\n  driver: ftp\n"},
		{"bad yaml", "database: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "****", mask("abc"))
	assert.Equal(t, "su****et", mask("supersecret"))
}
