package api_config

import (
	"time"

	"github.com/NordCoder/Custodian/internal/auth"
	"github.com/NordCoder/Custodian/internal/obs"
	"github.com/NordCoder/Custodian/internal/outbox"
	pg "github.com/NordCoder/Custodian/internal/repository/postgres"
	"github.com/NordCoder/Custodian/internal/services/mail"
	"github.com/NordCoder/Custodian/internal/services/session"
	"github.com/NordCoder/Custodian/internal/services/verification"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	SecureCookies   bool          `mapstructure:"secure_cookies"`
}

// Storage selects the repository backend: "postgres" or "memory".
type Storage struct {
	Driver string `mapstructure:"driver"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig(version string) obs.OTELConfig {
	return obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		Version:     version,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (lc *Log) AsLoggerConfig(app App) obs.LogConfig {
	return obs.LogConfig{
		Level:  lc.Level,
		Pretty: lc.Pretty,
		App:    "custodian/" + app.Name,
		Env:    app.Env,
		Ver:    app.Version,
	}
}

type Auth struct {
	Issuer     string        `mapstructure:"issuer"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

func (ac *Auth) AsIssuerConfig() auth.Config {
	return auth.Config{
		Issuer:     ac.Issuer,
		Secret:     []byte(ac.JWTSecret),
		AccessTTL:  ac.AccessTTL,
		RefreshTTL: ac.RefreshTTL,
	}
}

type Mail struct {
	SMTP          mail.SMTPConfig `mapstructure:"smtp"`
	RetryAttempts int             `mapstructure:"retry_attempts"`
	Links         mail.Links      `mapstructure:"links"`
}

type Kafka struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Metrics struct {
	// Addr serves /metrics on a dedicated listener when set.
	Addr string `mapstructure:"addr"`
}

type Config struct {
	App          App                 `mapstructure:"app"`
	Server       Server              `mapstructure:"server"`
	Storage      Storage             `mapstructure:"storage"`
	DB           pg.Config           `mapstructure:"db"`
	OTEL         OTEL                `mapstructure:"otel"`
	Log          Log                 `mapstructure:"log"`
	Auth         Auth                `mapstructure:"auth"`
	Session      session.Config      `mapstructure:"session"`
	Verification verification.Config `mapstructure:"verification"`
	Mail         Mail                `mapstructure:"mail"`
	Kafka        Kafka               `mapstructure:"kafka"`
	Outbox       outbox.Config       `mapstructure:"outbox"`
	Metrics      Metrics             `mapstructure:"metrics"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
