package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type UpstreamConfig struct {
	InverterBaseURL string
	MeterBaseURL    string
	WeatherBaseURL  string
	Timeout         time.Duration
}

type SubmissionsConfig struct {
	RecalcBatchSize int
	SyncFetchLimit  int
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Upstream    UpstreamConfig
	Submissions SubmissionsConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Upstream: UpstreamConfig{
			InverterBaseURL: v.GetString("INVERTER_API_URL"),
			MeterBaseURL:    v.GetString("METER_API_URL"),
			WeatherBaseURL:  v.GetString("WEATHER_API_URL"),
			Timeout:         time.Duration(v.GetInt("UPSTREAM_TIMEOUT_SECONDS")) * time.Second,
		},
		Submissions: SubmissionsConfig{
			RecalcBatchSize: v.GetInt("RECALC_BATCH_SIZE"),
			SyncFetchLimit:  v.GetInt("SYNC_FETCH_LIMIT"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 5007
	}
	if cfg.Upstream.InverterBaseURL == "" {
		cfg.Upstream.InverterBaseURL = "http://localhost:5002/api"
	}
	if cfg.Upstream.MeterBaseURL == "" {
		cfg.Upstream.MeterBaseURL = "http://localhost:3000/meter"
	}
	if cfg.Upstream.WeatherBaseURL == "" {
		cfg.Upstream.WeatherBaseURL = cfg.Upstream.InverterBaseURL + "/weather"
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = 30 * time.Second
	}
	if cfg.Submissions.RecalcBatchSize == 0 {
		cfg.Submissions.RecalcBatchSize = 10
	}
	if cfg.Submissions.SyncFetchLimit == 0 {
		cfg.Submissions.SyncFetchLimit = 5000
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	return nil
}
