package config

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validConfig() Config {
	return Config{
		Port:                "8080",
		DataBackend:         "memory",
		AnchorBroker:        "none",
		AnchorInterval:      time.Hour,
		AnchorConcurrency:   2,
		Timezone:            "UTC",
		FutureSkew:          time.Minute,
		RegressionTolerance: 5 * time.Minute,
		AmountCeiling:       decimal.NewFromInt(10_000_000),
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errorString string
	}{
		{name: "valid memory config", mutate: func(*Config) {}},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range",
			mutate:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "invalid data backend",
			mutate:      func(c *Config) { c.DataBackend = "mongo" },
			wantErr:     true,
			errorString: "invalid data backend 'mongo'",
		},
		{
			name:        "postgres without url",
			mutate:      func(c *Config) { c.DataBackend = "postgres" },
			wantErr:     true,
			errorString: "DATABASE_URL is required",
		},
		{
			name: "valid sqlite",
			mutate: func(c *Config) {
				c.DataBackend = "sqlite"
				c.SQLiteDBPath = "./ledger.db"
			},
		},
		{
			name: "amqp with wrong scheme",
			mutate: func(c *Config) {
				c.AnchorBroker = "amqp"
				c.AMQPURL = "http://localhost"
				c.AMQPExchange = "ledger"
				c.AMQPQueue = "anchors"
			},
			wantErr:     true,
			errorString: "invalid AMQP URL scheme 'http'",
		},
		{
			name: "kafka without brokers",
			mutate: func(c *Config) {
				c.AnchorBroker = "kafka"
				c.KafkaTopic = "anchors"
			},
			wantErr:     true,
			errorString: "KAFKA_BROKERS cannot be empty",
		},
		{
			name:        "unknown timezone",
			mutate:      func(c *Config) { c.Timezone = "Mars/Olympus" },
			wantErr:     true,
			errorString: "invalid ledger timezone",
		},
		{
			name:        "negative ceiling",
			mutate:      func(c *Config) { c.AmountCeiling = decimal.NewFromInt(-1) },
			wantErr:     true,
			errorString: "amount ceiling cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errorString) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.errorString)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ANCHOR_INTERVAL", "15m")
	t.Setenv("AMOUNT_CEILING", "5000.50")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("LEDGER_TIMEZONE", "Asia/Kolkata")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want %q", cfg.Port, "9090")
	}
	if cfg.DataBackend != "sqlite" {
		t.Errorf("DataBackend = %q, want sqlite", cfg.DataBackend)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("KafkaBrokers = %v, want [k1:9092 k2:9092]", cfg.KafkaBrokers)
	}
	if cfg.AnchorInterval != 15*time.Minute {
		t.Errorf("AnchorInterval = %v, want 15m", cfg.AnchorInterval)
	}
	if !cfg.AmountCeiling.Equal(decimal.RequireFromString("5000.50")) {
		t.Errorf("AmountCeiling = %s, want 5000.50", cfg.AmountCeiling)
	}
	if cfg.MetricsEnabled {
		t.Error("MetricsEnabled should be false")
	}
	if cfg.Timezone != "Asia/Kolkata" {
		t.Errorf("Timezone = %q, want Asia/Kolkata", cfg.Timezone)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATA_BACKEND", "ANCHOR_BROKER", "LEDGER_TIMEZONE", "FUTURE_SKEW"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" || cfg.DataBackend != "memory" || cfg.AnchorBroker != "none" {
		t.Errorf("defaults = %s/%s/%s, want 8080/memory/none", cfg.Port, cfg.DataBackend, cfg.AnchorBroker)
	}
	if cfg.Timezone != "UTC" || cfg.FutureSkew != time.Minute {
		t.Errorf("Timezone/FutureSkew = %s/%v, want UTC/1m", cfg.Timezone, cfg.FutureSkew)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}
