// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	rrate "github.com/go-redis/redis_rate/v9"
	"github.com/safehtml-demo/wall/internal/config"
	"github.com/safehtml-demo/wall/internal/log"
	"github.com/safehtml-demo/wall/internal/lru"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
	"golang.org/x/time/rate"
)

var (
	keyQuotaBlocked = tag.MustNewKey("quota.blocked")
	quotaResults    = stats.Int64("wall/quota_result_count", "Result of a quota check.", stats.UnitDimensionless)

	// QuotaResultCount counts quota checks by outcome: allowed, blocked,
	// bypassed, or the reason the check could not be made.
	QuotaResultCount = &view.View{
		Name:        "wall/quota/result_count",
		Measure:     quotaResults,
		Aggregation: view.Count(),
		Description: "quota results, by blocked or allowed",
		TagKeys:     []tag.Key{keyQuotaBlocked},
	}
)

// A quotaCheck reports whether a client, identified by its address block,
// is over quota. reason labels the outcome in metrics.
type quotaCheck func(ctx context.Context, block string) (blocked bool, reason string)

// limitRequests is the part of the quota middlewares that does not depend on
// where the counts are kept. Clients are grouped into blocks of addresses
// that differ only in their low-order byte. A client that cannot be placed
// in a block is let through.
func limitRequests(settings config.QuotaSettings, check quotaCheck) Middleware {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			var blocked bool
			var reason string
			switch addr := clientAddr(r); {
			case !settings.Enable:
				reason = "disabled"
			case bypass(r, settings):
				reason = "bypassed"
			case addr == "":
				reason = "no header"
			default:
				if block := ipKey(addr); block == "" {
					reason = "bad header"
				} else {
					blocked, reason = check(ctx, block)
				}
			}
			recordQuotaMetric(ctx, reason)
			if blocked && !recordOnly(settings) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			h.ServeHTTP(w, r)
		})
	}
}

// LegacyQuota limits each address block to settings.QPS requests per second
// with bursts of settings.Burst, counting in process memory. Up to
// settings.MaxEntries blocks are tracked; the least recently seen are
// forgotten first. Servers without redis use it.
func LegacyQuota(settings config.QuotaSettings) Middleware {
	var mu sync.Mutex
	limiters := lru.New[string, *rate.Limiter](max(settings.MaxEntries, 1))
	return limitRequests(settings, func(_ context.Context, block string) (bool, string) {
		mu.Lock()
		l, ok := limiters.Get(block)
		if !ok {
			l = rate.NewLimiter(rate.Limit(settings.QPS), settings.Burst)
			limiters.Put(block, l)
		}
		mu.Unlock()
		if l.Allow() {
			return false, "allowed"
		}
		return true, "blocked"
	})
}

// Quota limits each address block to settings.QPS requests per second,
// counting in redis so that every replica of the server shares the limits.
// Blocks are stored under an HMAC of the address, never the address itself.
// If redis is slow or down, requests are let through.
func Quota(settings config.QuotaSettings, client *redis.Client) Middleware {
	limiter := rrate.NewLimiter(client)
	return limitRequests(settings, func(ctx context.Context, block string) (bool, string) {
		return enforceQuota(ctx, limiter, settings.QPS, block, settings.HMACKey)
	})
}

// quotaTimeout bounds the redis round trip. It is a variable for tests.
var quotaTimeout = 15 * time.Millisecond

func enforceQuota(ctx context.Context, limiter *rrate.Limiter, qps int, block string, hmacKey []byte) (blocked bool, reason string) {
	mac := hmac.New(sha256.New, hmacKey)
	mac.Write([]byte(block))
	ctx, cancel := context.WithTimeout(ctx, quotaTimeout)
	defer cancel()
	res, err := limiter.Allow(ctx, string(mac.Sum(nil)), rrate.PerSecond(qps))
	if err != nil {
		var nerr *net.OpError
		if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &nerr) && nerr.Timeout() {
			log.Warningf(ctx, "quota: redis limiter: %v", err)
			return false, "timeout"
		}
		log.Errorf(ctx, "quota: redis limiter: %v", err)
		return false, "error"
	}
	if res.Allowed == 0 {
		return true, "blocked"
	}
	return false, "allowed"
}

// bypass reports whether r carries one of the configured bypass values.
func bypass(r *http.Request, settings config.QuotaSettings) bool {
	v := r.Header.Get(config.BypassQuotaAuthHeader)
	if v == "" {
		return false
	}
	for _, want := range settings.AuthValues {
		if hmac.Equal([]byte(v), []byte(want)) {
			log.Debugf(r.Context(), "quota: bypassed by %s", config.BypassQuotaAuthHeader)
			return true
		}
	}
	return false
}

func recordOnly(settings config.QuotaSettings) bool {
	return settings.RecordOnly != nil && *settings.RecordOnly
}

func recordQuotaMetric(ctx context.Context, result string) {
	stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(keyQuotaBlocked, result)}, quotaResults.M(1))
}

// clientAddr returns the X-Forwarded-For header, or the remote host when the
// server is reached directly.
func clientAddr(r *http.Request) string {
	if h := r.Header.Get("X-Forwarded-For"); h != "" {
		return h
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ipKey returns the address block of the first address in a forwarding
// list: the address with its last byte zeroed. It returns "" if that
// address does not parse.
func ipKey(forwarded string) string {
	first, _, _ := strings.Cut(forwarded, ",")
	a, err := netip.ParseAddr(strings.TrimSpace(first))
	if err != nil {
		return ""
	}
	if a.Is4() {
		b := a.As4()
		b[3] = 0
		return netip.AddrFrom4(b).String()
	}
	b := a.As16()
	b[15] = 0
	return netip.AddrFrom16(b).String()
}
