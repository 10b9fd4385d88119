package api_config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", secret)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 24*time.Hour, cfg.Verification.TTL)
	assert.Equal(t, "account-events", cfg.Kafka.Topic)
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
	assert.Equal(t, 3, cfg.Mail.RetryAttempts)
	assert.Equal(t, "http://localhost:8080/account/transfer/confirm?tokenForOldEmail=", cfg.Mail.Links.TransferConfirm)
}

func TestLoad_FileAndEnv(t *testing.T) {
	p := writeConfig(t, `
app:
  name: api
  env: prod
storage:
  driver: memory
server:
  cors_origins: ["http://app.local"]
  secure_cookies: true
auth:
  jwt_secret: `+secret+`
  refresh_ttl: 48h
mail:
  smtp:
    addr: smtp.local:465
    use_tls: true
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
`)
	t.Setenv("SERVER_HTTP_ADDR", ":9999")

	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.HTTPAddr)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, []string{"http://app.local"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Server.SecureCookies)
	assert.Equal(t, 48*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, "smtp.local:465", cfg.Mail.SMTP.Addr)
	assert.True(t, cfg.Mail.SMTP.UseTLS)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)

	ic := cfg.Auth.AsIssuerConfig()
	assert.Equal(t, []byte(secret), ic.Secret)
	assert.Equal(t, "custodian/api", cfg.Log.AsLoggerConfig(cfg.App).App)
	assert.Equal(t, "prod", cfg.Log.AsLoggerConfig(cfg.App).Env)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"short secret", "auth:\n  jwt_secret: short\n", "jwt_secret"},
		{"unknown driver", "auth:\n  jwt_secret: " + secret + "\nstorage:\n  driver: mongo\n", "storage.driver"},
		{"kafka without topic", "auth:\n  jwt_secret: " + secret + "\nkafka:\n  enabled: true\n  topic: \"\"\n", "kafka"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
