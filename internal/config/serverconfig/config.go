// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package serverconfig resolves the configuration of the wall server from
// the environment.
package serverconfig

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/safehtml-demo/wall/internal/config"
	"github.com/safehtml-demo/wall/internal/derrors"
	"github.com/safehtml-demo/wall/internal/log"
	"github.com/safehtml-demo/wall/internal/render"
	"github.com/safehtml-demo/wall/internal/store"
	"gopkg.in/yaml.v3"
)

// GetEnv looks up the given key from the environment, returning its value if
// it exists, and otherwise returning the given fallback value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvInt looks up the given key from the environment and expects an integer,
// returning the integer value if it exists, and otherwise returning the given
// fallback value.
// If the environment variable has a value but it can't be parsed as an integer,
// GetEnvInt terminates the program.
func GetEnvInt(ctx context.Context, key string, fallback int) int {
	if s, ok := os.LookupEnv(key); ok {
		v, err := strconv.Atoi(s)
		if err != nil {
			log.Fatalf(ctx, "bad value %q for %s: %v", s, key, err)
		}
		return v
	}
	return fallback
}

// GetEnvDuration is like GetEnvInt for values such as "90s" or "10m".
func GetEnvDuration(ctx context.Context, key string, fallback time.Duration) time.Duration {
	if s, ok := os.LookupEnv(key); ok {
		v, err := time.ParseDuration(s)
		if err != nil {
			log.Fatalf(ctx, "bad value %q for %s: %v", s, key, err)
		}
		return v
	}
	return fallback
}

// configOverride holds selected config settings that can be overridden from
// a file.
type configOverride struct {
	Variant           render.Variant       `yaml:"Variant"`
	AllowVariantParam bool                 `yaml:"AllowVariantParam"`
	IdleTTL           time.Duration        `yaml:"IdleTTL"`
	FragmentCacheTTL  time.Duration        `yaml:"FragmentCacheTTL"`
	Quota             config.QuotaSettings `yaml:"Quota"`
}

// Init resolves all configuration values provided by the config package. It
// must be called before any configuration values are used.
//
// Variables in a .env file in the working directory are added to the
// environment first; variables that are already set win.
func Init(ctx context.Context) (_ *config.Config, err error) {
	defer derrors.Add(&err, "config.Init(ctx)")

	if err := loadDotEnv(GetEnv("WALL_ENV_FILE", ".env")); err != nil {
		return nil, err
	}
	variant, err := render.ParseVariant(os.Getenv("WALL_VARIANT"))
	if err != nil {
		return nil, err
	}
	cfg := &config.Config{
		Port:              GetEnv("PORT", "8080"),
		DebugPort:         os.Getenv("DEBUG_PORT"),
		Variant:           variant,
		AllowVariantParam: os.Getenv("WALL_ALLOW_VARIANT_PARAM") == "true",
		Store:             GetEnv("WALL_STORE", config.StoreMemory),
		MaxWalls:          GetEnvInt(ctx, "WALL_MAX_WALLS", store.DefaultMaxWalls),
		IdleTTL:           GetEnvDuration(ctx, "WALL_IDLE_TTL", store.DefaultIdleTTL),
		PebbleDir:         GetEnv("WALL_PEBBLE_DIR", "walls.db"),
		SweepInterval:     GetEnvDuration(ctx, "WALL_SWEEP_INTERVAL", time.Minute),
		RedisHost:         os.Getenv("WALL_REDIS_HOST"),
		RedisPort:         GetEnv("WALL_REDIS_PORT", "6379"),
		RedisPassword:     os.Getenv("WALL_REDIS_PASSWORD"),
		FragmentCacheTTL:  GetEnvDuration(ctx, "WALL_FRAGMENT_CACHE_TTL", time.Hour),
		MaxBodyBytes:      int64(GetEnvInt(ctx, "WALL_MAX_BODY_BYTES", 64<<10)),
		MaxHTMLBytes:      GetEnvInt(ctx, "WALL_MAX_HTML_BYTES", 4096),
		RequestTimeout:    GetEnvDuration(ctx, "WALL_REQUEST_TIMEOUT", 54*time.Second),
		AddTimeout:        GetEnvDuration(ctx, "WALL_ADD_TIMEOUT", 10*time.Second),
		Quota: config.QuotaSettings{
			Enable:     os.Getenv("WALL_ENABLE_QUOTA") == "true",
			QPS:        GetEnvInt(ctx, "WALL_QUOTA_QPS", 10),
			Burst:      GetEnvInt(ctx, "WALL_QUOTA_BURST", 20), // ignored in redis-based quota implementation
			MaxEntries: 1000,                                   // ignored in redis-based quota implementation
			RecordOnly: func() *bool {
				t := os.Getenv("WALL_QUOTA_RECORD_ONLY") == "true"
				return &t
			}(),
			AuthValues: parseCommaList(os.Getenv("WALL_AUTH_VALUES")),
		},
		LogLevel:      os.Getenv("WALL_LOG_LEVEL"),
		DisableCSP:    os.Getenv("WALL_DISABLE_CSP") == "true",
		ServeStats:    os.Getenv("WALL_SERVE_STATS") == "true",
		OverridesFile: os.Getenv("WALL_CONFIG_OVERRIDES"),
	}
	log.SetLevel(cfg.LogLevel)

	switch cfg.Store {
	case config.StoreMemory, config.StorePebble:
	case config.StoreRedis:
		if cfg.RedisHost == "" {
			return nil, errors.New("WALL_REDIS_HOST must be set to use the redis store")
		}
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	if cfg.Quota.Enable {
		hmacKey, err := hex.DecodeString(os.Getenv("WALL_QUOTA_HMAC_KEY"))
		if err != nil {
			return nil, fmt.Errorf("WALL_QUOTA_HMAC_KEY: %v", err)
		}
		if len(hmacKey) < 16 {
			return nil, errors.New("HMAC secret must be at least 16 bytes")
		}
		cfg.Quota.HMACKey = hmacKey
		log.Debugf(ctx, "quota enforcement enabled: qps=%d burst=%d maxentry=%d", cfg.Quota.QPS, cfg.Quota.Burst, cfg.Quota.MaxEntries)
	} else {
		log.Debugf(ctx, "quota enforcement disabled")
	}

	// Use the overrides file when you want to change something in a running
	// deployment without rebuilding. (Otherwise, do not use it.)
	if cfg.OverridesFile != "" {
		overrideBytes, err := os.ReadFile(cfg.OverridesFile)
		if err != nil {
			log.Error(ctx, err)
		} else {
			log.Infof(ctx, "processing overrides from %s", cfg.OverridesFile)
			processOverrides(ctx, cfg, overrideBytes)
		}
	}
	return cfg, nil
}

// loadDotEnv adds the variables in filename to the environment. A missing
// file is not an error.
func loadDotEnv(filename string) error {
	err := godotenv.Load(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func processOverrides(ctx context.Context, cfg *config.Config, bytes []byte) {
	var ov configOverride
	if err := yaml.Unmarshal(bytes, &ov); err != nil {
		log.Errorf(ctx, "processOverrides: yaml.Unmarshal: %v", err)
		return
	}
	override(ctx, "Variant", &cfg.Variant, ov.Variant)
	override(ctx, "AllowVariantParam", &cfg.AllowVariantParam, ov.AllowVariantParam)
	override(ctx, "IdleTTL", &cfg.IdleTTL, ov.IdleTTL)
	override(ctx, "FragmentCacheTTL", &cfg.FragmentCacheTTL, ov.FragmentCacheTTL)
	override(ctx, "Quota.QPS", &cfg.Quota.QPS, ov.Quota.QPS)
	override(ctx, "Quota.Burst", &cfg.Quota.Burst, ov.Quota.Burst)
	override(ctx, "Quota.MaxEntries", &cfg.Quota.MaxEntries, ov.Quota.MaxEntries)
	override(ctx, "Quota.RecordOnly", &cfg.Quota.RecordOnly, ov.Quota.RecordOnly)
}

func override[T comparable](ctx context.Context, name string, field *T, val T) {
	var zero T
	if val != zero {
		*field = val
		log.Infof(ctx, "overriding %s with %v", name, val)
	}
}

func parseCommaList(s string) []string {
	var a []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			a = append(a, p)
		}
	}
	return a
}
