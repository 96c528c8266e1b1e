// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package middleware

import (
	"bytes"
	"context"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/safehtml-demo/wall/internal/cache"
	"github.com/safehtml-demo/wall/internal/log"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	keyCacheHit  = tag.MustNewKey("cache.hit")
	keyCacheName = tag.MustNewKey("cache.name")
	cacheResults = stats.Int64("wall/cache_result_count", "Result of a cache lookup.", stats.UnitDimensionless)
	cacheErrors  = stats.Int64("wall/cache_errors", "Failed cache reads and writes.", stats.UnitDimensionless)

	// CacheResultCount counts lookups by cache name and whether they hit.
	CacheResultCount = &view.View{
		Name:        "wall/cache/result_count",
		Measure:     cacheResults,
		Aggregation: view.Count(),
		Description: "cache results, by cache name and whether it was a hit",
		TagKeys:     []tag.Key{keyCacheHit, keyCacheName},
	}
	// CacheErrorCount counts redis failures by cache name.
	CacheErrorCount = &view.View{
		Name:        "wall/cache/errors",
		Measure:     cacheErrors,
		Aggregation: view.Count(),
		Description: "cache errors, by cache name",
		TagKeys:     []tag.Key{keyCacheName},
	}
)

// TestMode makes cache writes synchronous, so tests can observe them.
var TestMode = false

const (
	cacheGetTimeout = 50 * time.Millisecond
	cachePutTimeout = time.Second
)

// Cache returns a Middleware that serves responses from c when it can, and
// stores 200 responses in c for ttl otherwise. key gives the cache key of a
// request, or "" to bypass the cache. name labels the cache in metrics.
//
// A redis failure is logged and counted, and the request is served by the
// handler as if the cache were not there.
func Cache(name string, c *cache.Cache, ttl time.Duration, key func(*http.Request) string) Middleware {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				h.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if body, ok := cacheGet(ctx, name, c, k); ok {
				// The last path element, such as items.html, gives the
				// content type.
				http.ServeContent(w, r, path.Base(r.URL.Path), time.Time{}, bytes.NewReader(body))
				return
			}
			rec := &cacheRecorder{ResponseWriter: w}
			h.ServeHTTP(rec, r)
			if !rec.cacheable() {
				return
			}
			put := func() {
				pctx, cancel := context.WithTimeout(context.Background(), cachePutTimeout)
				defer cancel()
				if err := c.Put(pctx, k, rec.body.Bytes(), ttl); err != nil {
					log.Errorf(ctx, "cache %s: %v", name, err)
					record(ctx, cacheErrors, tag.Upsert(keyCacheName, name))
				}
			}
			log.Debugf(ctx, "caching %d bytes under %s", rec.body.Len(), k)
			if TestMode {
				put()
			} else {
				go put()
			}
		})
	}
}

// cacheGet looks k up in c, and reports whether it was found. Errors count
// as misses.
func cacheGet(ctx context.Context, name string, c *cache.Cache, k string) ([]byte, bool) {
	gctx, cancel := context.WithTimeout(ctx, cacheGetTimeout)
	defer cancel()
	body, err := c.Get(gctx, k)
	if err != nil {
		log.Errorf(ctx, "cache %s: %v", name, err)
		record(ctx, cacheErrors, tag.Upsert(keyCacheName, name))
		return nil, false
	}
	hit := body != nil
	record(ctx, cacheResults, tag.Upsert(keyCacheName, name), tag.Upsert(keyCacheHit, strconv.FormatBool(hit)))
	return body, hit
}

func record(ctx context.Context, m *stats.Int64Measure, tags ...tag.Mutator) {
	stats.RecordWithTags(ctx, tags, m.M(1))
}

// cacheRecorder passes a response through while keeping a copy of its body.
type cacheRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
	failed bool
}

// WriteHeader keeps the largest status written, so that a later middleware
// reporting failure cannot be overridden.
func (r *cacheRecorder) WriteHeader(status int) {
	r.status = max(r.status, status)
	r.ResponseWriter.WriteHeader(status)
}

func (r *cacheRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	if err != nil {
		r.failed = true
	} else {
		r.body.Write(b)
	}
	return n, err
}

func (r *cacheRecorder) cacheable() bool {
	return !r.failed && (r.status == 0 || r.status == http.StatusOK)
}
