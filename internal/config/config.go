package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"sqlite"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"data/datapipe.db"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address          string        `envconfig:"DATAPIPE_ADDRESS" default:":8342"`
	DataDir          string        `envconfig:"DATAPIPE_DATA_DIR" default:"data"`
	LogLevel         string        `envconfig:"DATAPIPE_LOG_LEVEL" default:"info"`
	WriteLockTimeout time.Duration `envconfig:"DATAPIPE_WRITE_LOCK_TIMEOUT" default:"5s"`
	ReconcileEvery   time.Duration `envconfig:"DATAPIPE_RECONCILE_INTERVAL" default:"1m"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault builds a config without touching the environment, used by
// tests that point the store at a throwaway database file.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{
			Type: "sqlite",
			Name: "data/datapipe.db",
		},
		Service: &svcConfig{
			Address:          ":8342",
			DataDir:          "data",
			LogLevel:         "info",
			WriteLockTimeout: 5 * time.Second,
			ReconcileEvery:   time.Minute,
		},
	}
}
