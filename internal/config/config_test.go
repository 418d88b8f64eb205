package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"KIDOKU_CONFIG", "BACKEND", "KIDOKU_DB", "API_ADDR",
		"FIREBASE_PROJECT_ID", "FIREBASE_API_KEY", "GOOGLE_CREDENTIALS_FILE",
		"NOTIFIER", "VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY", "VAPID_SUBSCRIBER",
		"EXPO_TOKEN", "NOTIFY_DISMISS_AFTER", "LOG_LEVEL", "LOG_FORMAT",
	} {
		if value, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { _ = os.Setenv(key, value) })
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, 5*time.Second, cfg.DismissAfter)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)

	file := filepath.Join(t.TempDir(), "kidoku.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
api_addr: ":9000"
db: from-file.db
notifier: none
notify_dismiss_after: 3s
log_format: json
`), 0o600))

	t.Setenv("KIDOKU_DB", "from-env.db")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load([]string{"--config", file, "--addr", "127.0.0.1:9100"})
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:9100", cfg.APIAddr) // flag beats file
	require.Equal(t, "from-env.db", cfg.DBFile)     // env beats file
	require.Equal(t, NotifierNone, cfg.Notifier)
	require.Equal(t, 3*time.Second, cfg.DismissAfter)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_ConfigFromEnv(t *testing.T) {
	clearEnv(t)

	file := filepath.Join(t.TempDir(), "kidoku.yaml")
	require.NoError(t, os.WriteFile(file, []byte("backend: local\ndb: env-named.db\n"), 0o600))
	t.Setenv("KIDOKU_CONFIG", file)

	cfg, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, "env-named.db", cfg.DBFile)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)

	t.Setenv("NOTIFY_DISMISS_AFTER", "soon")
	_, err = Load(nil)
	require.ErrorContains(t, err, "NOTIFY_DISMISS_AFTER")

	_, err = Load([]string{"--no-such-flag"})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Backend = "sqlite" }, "unknown BACKEND"},
		{"local without db", func(c *Config) { c.DBFile = "" }, "KIDOKU_DB"},
		{"firebase without project", func(c *Config) {
			c.Backend = BackendFirebase
			c.FirebaseAPIKey = "key"
		}, "FIREBASE_PROJECT_ID"},
		{"firebase without api key", func(c *Config) {
			c.Backend = BackendFirebase
			c.FirebaseProjectID = "project"
		}, "FIREBASE_API_KEY"},
		{"firebase complete", func(c *Config) {
			c.Backend = BackendFirebase
			c.FirebaseProjectID = "project"
			c.FirebaseAPIKey = "key"
		}, ""},
		{"webpush without keys", func(c *Config) {
			c.Notifier = NotifierWebPush
			c.VAPIDSubscriber = "mailto:ops@example.com"
		}, "VAPID_PUBLIC_KEY"},
		{"webpush without subscriber", func(c *Config) {
			c.Notifier = NotifierWebPush
			c.VAPIDPublicKey = "pub"
			c.VAPIDPrivateKey = "priv"
		}, "VAPID_SUBSCRIBER"},
		{"expo without token", func(c *Config) { c.Notifier = NotifierExpo }, "EXPO_TOKEN"},
		{"unknown notifier", func(c *Config) { c.Notifier = "pager" }, "unknown NOTIFIER"},
		{"zero dismiss", func(c *Config) { c.DismissAfter = 0 }, "NOTIFY_DISMISS_AFTER"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
