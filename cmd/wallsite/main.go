// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The wallsite command serves walls: pages where visitors pin short pieces
// of HTML, rendered in one of several variants.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/safehtml-demo/wall/internal/cache"
	"github.com/safehtml-demo/wall/internal/config"
	"github.com/safehtml-demo/wall/internal/config/serverconfig"
	"github.com/safehtml-demo/wall/internal/dcensus"
	"github.com/safehtml-demo/wall/internal/frontend"
	"github.com/safehtml-demo/wall/internal/log"
	"github.com/safehtml-demo/wall/internal/middleware"
	"github.com/safehtml-demo/wall/internal/store"
	"golang.org/x/sync/errgroup"
)

var (
	hostAddr    = flag.String("host", "localhost:8080", "host address for the server, used when PORT is unset")
	debugAddr   = flag.String("debug", "localhost:8081", "address of the debug server, used when DEBUG_PORT is unset")
	traceSample = flag.Float64("trace_sample", 0.01, "fraction of requests that are traced")
)

func main() {
	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := serverconfig.Init(ctx)
	if err != nil {
		log.Fatal(ctx, err)
	}
	cfg.Dump(os.Stderr)

	var redisClient *redis.Client
	if addr := cfg.RedisAddr(); addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.RedisPassword})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Errorf(ctx, "redis at %s: %v", addr, err)
		} else {
			log.Infof(ctx, "connected to redis at %s", addr)
		}
		defer redisClient.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	st, err := openStore(gctx, g, cfg, redisClient)
	if err != nil {
		log.Fatal(ctx, err)
	}
	defer st.Close()

	scfg := frontend.ServerConfig{
		Store:             st,
		FragmentTTL:       cfg.FragmentCacheTTL,
		Variant:           cfg.Variant,
		AllowVariantParam: cfg.AllowVariantParam,
		MaxHTMLBytes:      cfg.MaxHTMLBytes,
		ServeStats:        cfg.ServeStats,
	}
	if redisClient != nil && cfg.FragmentCacheTTL > 0 {
		scfg.Cache = cache.New(redisClient)
	}
	server, err := frontend.NewServer(scfg)
	if err != nil {
		log.Fatalf(ctx, "frontend.NewServer: %v", err)
	}
	router := dcensus.NewRouter(frontend.TagRoute)
	server.Install(router.Handle)

	views := append(dcensus.ServerViews,
		middleware.CacheResultCount,
		middleware.CacheErrorCount,
		middleware.QuotaResultCount,
	)
	if err := dcensus.Init(*traceSample, views...); err != nil {
		log.Fatal(ctx, err)
	}
	dcensusServer, err := dcensus.NewServer()
	if err != nil {
		log.Fatal(ctx, err)
	}
	panicHandler, err := server.PanicHandler()
	if err != nil {
		log.Fatal(ctx, err)
	}

	quota := middleware.LegacyQuota(cfg.Quota)
	if redisClient != nil {
		quota = middleware.Quota(cfg.Quota, redisClient)
	}
	mw := middleware.Chain(
		middleware.RequestLog(middleware.LocalLogger{}),
		middleware.AcceptRequests(http.MethodGet, http.MethodPost, http.MethodHead), // accept only GETs, POSTs and HEADs
		middleware.If(cfg.Quota.Enable, quota),
		middleware.SecureHeaders(!cfg.DisableCSP), // must come before the page handlers for nonces to work
		middleware.Panic(panicHandler),
		middleware.LimitBody(cfg.MaxBodyBytes),
		middleware.Timeout(middleware.Timeouts{Read: cfg.RequestTimeout, Write: cfg.AddTimeout}),
	)
	if cfg.DisableCSP {
		log.Warning(ctx, "Content-Security-Policy is disabled")
	}

	serve(gctx, g, cfg.HostAddr(*hostAddr), mw(router))
	serve(gctx, g, cfg.DebugAddr(*debugAddr), dcensusServer)
	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(ctx, err)
	}
}

// openStore opens the store named by cfg. Background work the store needs
// runs in g.
func openStore(ctx context.Context, g *errgroup.Group, cfg *config.Config, redisClient *redis.Client) (store.Store, error) {
	switch cfg.Store {
	case config.StoreRedis:
		log.Infof(ctx, "storing walls in redis at %s", cfg.RedisAddr())
		return store.NewRedis(redisClient, cfg.IdleTTL), nil
	case config.StorePebble:
		p, err := store.OpenPebble(cfg.PebbleDir, nil, cfg.IdleTTL)
		if err != nil {
			return nil, err
		}
		log.Infof(ctx, "storing walls in %s", cfg.PebbleDir)
		g.Go(func() error { return p.RunSweeper(ctx, cfg.SweepInterval) })
		return p, nil
	default:
		log.Infof(ctx, "storing up to %d walls in memory", cfg.MaxWalls)
		return store.NewMemory(cfg.MaxWalls, cfg.IdleTTL), nil
	}
}

// serve runs an HTTP server on addr in g, shutting it down when ctx is done.
func serve(ctx context.Context, g *errgroup.Group, addr string, h http.Handler) {
	srv := &http.Server{Addr: addr, Handler: h}
	g.Go(func() error {
		log.Infof(ctx, "Listening on addr %s", addr)
		return srv.ListenAndServe()
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
}
