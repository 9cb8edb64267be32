package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	goIssuer "github.com/MrEthical07/goIssuer"
	"github.com/MrEthical07/goIssuer/internal/logging"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	keyIssuer        = "issuer"
	keyAudience      = "audience"
	keySecretKey     = "secret_key"
	keyClockSkew     = "clock_skew"
	keyValidFor      = "valid_for"
	keyPolicy        = "missing_record_policy"
	keyRedisAddr     = "redis.addr"
	keyRedisPassword = "redis.password"
	keyRedisDB       = "redis.db"
	keyRedisPrefix   = "redis.prefix"
	keyHTTPAddr      = "http.addr"
	keyTrustProxy    = "http.trust_proxy"
	keyLogLevel      = "log.level"
	keyLogFormat     = "log.format"
	keyLogNoColor    = "log.no_color"
	keyAuditEnabled  = "audit.enabled"
	keyAuditBuffer   = "audit.buffer"
	keyLatency       = "metrics.latency"
	keyMaxFailed     = "throttle.max_failed"
	keyFailWindow    = "throttle.window"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyClockSkew, "5")
	v.SetDefault(keyValidFor, goIssuer.DefaultValidFor)
	v.SetDefault(keyPolicy, "reject")
	v.SetDefault(keyRedisAddr, "localhost:6379")
	v.SetDefault(keyRedisPrefix, "tokend")
	v.SetDefault(keyHTTPAddr, ":8080")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, "console")
	v.SetDefault(keyAuditBuffer, 1024)
	v.SetDefault(keyMaxFailed, 10)
	v.SetDefault(keyFailWindow, 15*time.Minute)
}

// loadConfig reads an optional .env, then the optional YAML file, then TOKEND_* variables.
func loadConfig(v *viper.Viper, file string) (string, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("loading .env: %w", err)
	}

	v.SetEnvPrefix("TOKEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("tokend")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("reading config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

func newLogger(v *viper.Viper) (zerolog.Logger, error) {
	return logging.New(logging.Options{
		Level:   v.GetString(keyLogLevel),
		Format:  v.GetString(keyLogFormat),
		NoColor: v.GetBool(keyLogNoColor),
	})
}

func parsePolicy(raw string) (goIssuer.MissingRecordPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "reject", goIssuer.RejectMissingRecord.String():
		return goIssuer.RejectMissingRecord, nil
	case "issue_on_missing", goIssuer.IssueOnMissingRecord.String():
		return goIssuer.IssueOnMissingRecord, nil
	default:
		return 0, fmt.Errorf("unknown %s %q", keyPolicy, raw)
	}
}

// issuerConfig maps the loaded settings onto a validated engine configuration.
func issuerConfig(v *viper.Viper) (goIssuer.Config, error) {
	cfg, err := goIssuer.ParseConfig(goIssuer.RawConfig{
		Issuer:    v.GetString(keyIssuer),
		Audience:  v.GetString(keyAudience),
		SecretKey: v.GetString(keySecretKey),
		ClockSkew: v.GetString(keyClockSkew),
		ValidFor:  v.GetDuration(keyValidFor),
	})
	if err != nil {
		return goIssuer.Config{}, err
	}

	if cfg.MissingRecordPolicy, err = parsePolicy(v.GetString(keyPolicy)); err != nil {
		return goIssuer.Config{}, err
	}
	cfg.Metrics.EnableLatencyHistograms = v.GetBool(keyLatency)
	cfg.Audit.Enabled = v.GetBool(keyAuditEnabled)
	cfg.Audit.BufferSize = v.GetInt(keyAuditBuffer)
	return cfg, nil
}

func redisOptions(v *viper.Viper) *redis.Options {
	return &redis.Options{
		Addr:     v.GetString(keyRedisAddr),
		Password: v.GetString(keyRedisPassword),
		DB:       v.GetInt(keyRedisDB),
	}
}
