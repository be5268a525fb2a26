package main

import (
	"context"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/AlexKimmel/QuotaGate/internal/admission"
	"github.com/AlexKimmel/QuotaGate/internal/auth"
	"github.com/AlexKimmel/QuotaGate/internal/config"
	"github.com/AlexKimmel/QuotaGate/internal/gateway"
	"github.com/AlexKimmel/QuotaGate/internal/obs"
	"github.com/AlexKimmel/QuotaGate/internal/stats"
)

func main() {
	path := "./config.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := obs.SetupLogger(cfg.Observability.LogLevel)
	logger.Info().Msg("Setup logger")

	// admission engine
	engOpts := []admission.Option{}
	if ttl := cfg.Limits.IdleTTL(); ttl > 0 {
		engOpts = append(engOpts,
			admission.WithIdleTTL(ttl),
			admission.WithSweepEvery(cfg.Limits.SweepEvery()),
		)
	}
	engine, err := admission.New(cfg.Limits.Rate, cfg.Limits.Per(), engOpts...)
	if err != nil {
		log.Fatalf("admission engine: %v", err)
	}
	defer engine.Close()

	reg := prometheus.NewRegistry()
	metrics := obs.NewMetrics(reg, engine.TrackedScopes)

	pairs := map[string]string{} // secret -> keyID
	for _, k := range cfg.Auth.Keys {
		if k.Secret != "" && k.ID != "" {
			pairs[k.Secret] = k.ID
		}
	}
	authStore := auth.NewStatic(cfg.Auth.Header, pairs)

	// optional Redis stats sink
	var statsStore stats.Store
	if cfg.Stats.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Stats.RedisAddr,
			Password: cfg.Stats.RedisPass,
			DB:       cfg.Stats.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			log.Fatalf("stats redis ping: %v", err)
		}

		statsStore = stats.NewRedisStore(
			rdb,
			stats.WithPrefix(cfg.Stats.Prefix),
			stats.WithTTL(cfg.Stats.TTL()),
			stats.WithBucket(cfg.Stats.Bucket),
			stats.WithRedisTrackKeys(cfg.Stats.TrackKeys),
		)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("v0.1.0"))
	})

	mux.Handle(cfg.Observability.PrometheusPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	if cfg.Upstream.URL != "" {
		target, err := url.Parse(cfg.Upstream.URL)
		if err != nil {
			log.Fatalf("invalid upstream url: %v", err)
		}
		proxy := httputil.NewSingleHostReverseProxy(target)
		proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error().Err(err).Str("path", r.URL.Path).Msg("proxy error")
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}
		timeout := cfg.Upstream.Timeout()
		mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			proxy.ServeHTTP(w, r.WithContext(ctx))
		}))
	} else {
		mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"ok":true,"msg":"no upstream configured"}`))
		})
	}

	skip := map[string]struct{}{
		"/health":                        {},
		"/version":                       {},
		cfg.Observability.PrometheusPath: {},
	}

	handler := gateway.Chain(
		mux,
		obs.Logger(logger),
		metrics.Middleware(skip),
		gateway.BodyLimit(cfg.Server.MaxBody()),
		authStore.Middleware(skip),
		gateway.RateLimit(engine, gateway.RateLimitOptions{
			KeyFn:     gateway.DefaultKeyFunc(cfg.Scope.KeyHeader, cfg.Scope.TrustXForwardedFor),
			SkipPaths: skip,
			Stats:     statsStore,
			OnRejected: func(key string) {
				metrics.RejectedTotal.Inc()
				logger.Warn().Str("key", key).Msg("request rejected")
			},
			OnOverflowAllowed: func(key string) {
				metrics.OverflowAllowed.Inc()
				logger.Debug().Str("key", key).Msg("overflow allowed")
			},
		}),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout(),
		IdleTimeout:       cfg.Server.IdleTimeout(),
		ReadTimeout:       cfg.Server.ReadTimeout(),
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	log.Printf("bye")
}
