// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the configuration of the wall server. Values are
// resolved from the environment by package serverconfig.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/safehtml-demo/wall/internal/render"
)

// Store names accepted in Config.Store.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StorePebble = "pebble"
)

// BypassQuotaAuthHeader is the header used to bypass quota enforcement. Its
// value must be one of Config.Quota.AuthValues.
const BypassQuotaAuthHeader = "X-Wall-Bypass-Quota"

// Config holds shared configuration values used in instantiating our server
// components.
type Config struct {
	// Port is the port the main server listens on. DebugPort serves metrics
	// and profiling when set.
	Port, DebugPort string

	// Variant is how wall items are rendered unless a request overrides it.
	Variant render.Variant
	// AllowVariantParam lets a ?variant= query parameter choose the
	// rendering per request.
	AllowVariantParam bool

	// Store is one of StoreMemory, StoreRedis or StorePebble.
	Store string
	// MaxWalls bounds the in-memory store.
	MaxWalls int
	// IdleTTL is how long a wall survives without being read or written.
	IdleTTL time.Duration
	// PebbleDir is the database directory of the pebble store.
	PebbleDir string
	// SweepInterval is how often idle walls are deleted from pebble.
	SweepInterval time.Duration

	// Redis is used by the redis store, the quota and the fragment cache.
	RedisHost, RedisPort string
	RedisPassword        string `json:"-"`

	// FragmentCacheTTL is how long rendered items.html fragments stay in
	// redis. Zero disables the cache.
	FragmentCacheTTL time.Duration

	// MaxBodyBytes bounds request bodies; MaxHTMLBytes bounds the untrusted
	// HTML of a single item.
	MaxBodyBytes int64
	MaxHTMLBytes int

	// RequestTimeout bounds requests that read a wall; AddTimeout bounds
	// requests that add items.
	RequestTimeout, AddTimeout time.Duration

	Quota QuotaSettings

	LogLevel string

	// DisableCSP turns off the Content-Security-Policy header, so that the
	// insecure variant's injected handlers actually run.
	DisableCSP bool

	// ServeStats exposes per-page statistics on the debug server.
	ServeStats bool

	// OverridesFile, if set, is a YAML file whose values replace selected
	// settings.
	OverridesFile string
}

// QuotaSettings is config for internal/middleware/quota.go
type QuotaSettings struct {
	Enable     bool `yaml:"Enable"`
	QPS        int  `yaml:"QPS"`        // allowed queries per second, per IP block
	Burst      int  `yaml:"Burst"`      // maximum requests per second, per block; the size of the token bucket
	MaxEntries int  `yaml:"MaxEntries"` // maximum number of entries to keep track of
	// Record data about blocking, but do not actually block.
	// This is a *bool, so we can distinguish "not present" from "false" in an override
	RecordOnly *bool `yaml:"RecordOnly"`
	// AuthValues is the set of values that could be set on the BypassQuotaAuthHeader,
	// to allow HTTP requests to bypass quota.
	AuthValues []string `json:"-" yaml:"-"`
	HMACKey    []byte   `json:"-" yaml:"-"` // key for obfuscating IPs
}

// HostAddr returns the network on which to serve the primary HTTP service.
func (c *Config) HostAddr(dflt string) string {
	if c.Port != "" {
		return fmt.Sprintf(":%s", c.Port)
	}
	return dflt
}

// DebugAddr returns the network address on which to serve debugging
// information.
func (c *Config) DebugAddr(dflt string) string {
	if c.DebugPort != "" {
		return fmt.Sprintf(":%s", c.DebugPort)
	}
	return dflt
}

// RedisAddr returns the host:port of the redis server, or the empty string
// if none is configured.
func (c *Config) RedisAddr() string {
	if c.RedisHost == "" {
		return ""
	}
	return net.JoinHostPort(c.RedisHost, c.RedisPort)
}

// Dump outputs the current config information to the given Writer.
// Secrets are omitted.
func (c *Config) Dump(w io.Writer) error {
	fmt.Fprint(w, "config: ")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(c)
}
