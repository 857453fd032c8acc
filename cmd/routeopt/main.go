package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"

	"medtransit-route/internal/api"
	"medtransit-route/internal/config"
	"medtransit-route/internal/delay"
	"medtransit-route/internal/driverstate"
	"medtransit-route/internal/health"
	"medtransit-route/internal/ingest"
	"medtransit-route/internal/matrix"
	"medtransit-route/internal/metrics"
	"medtransit-route/internal/pipeline"
	"medtransit-route/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	metrics.RegisterDefault()

	// Mirrors the teacher's NewServer(): REDIS_URL, REDIS_HOST and
	// REDIS_PORT all unset means no Redis instance is actually
	// configured, not just defaulted, so
	// driver state and the reroute broker fall back to their
	// in-memory implementations instead of dialing localhost.
	redisConfigured := os.Getenv("REDIS_URL") != "" || os.Getenv("REDIS_HOST") != "" || os.Getenv("REDIS_PORT") != ""

	var rdb *redis.Client
	if redisConfigured {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opt)
	}

	provider := matrix.NewGoogleDistanceMatrixProvider(cfg.GoogleMapsAPIKey)
	resolver := matrix.NewCachedResolver(provider, rdb, time.Duration(cfg.MatrixTTLSeconds)*time.Second)

	params := pipeline.Params{
		MaxStops:           cfg.MaxStopsPerRoute,
		SolverWallClock:    time.Duration(cfg.SolverWallClockSeconds) * time.Second,
		SlackMinutes:       cfg.SlackMinutes,
		RouteBudgetMinutes: cfg.RouteBudgetMinutes,
	}
	pl := pipeline.New(resolver, params)

	var store driverstate.Store
	var broker session.EventBroker
	if redisConfigured {
		store = driverstate.NewRedisStore(rdb, time.Duration(cfg.DriverStateTTLSeconds)*time.Second)
		broker = session.NewRedisBroker(rdb)
	} else {
		log.Printf("REDIS_URL not configured, falling back to in-memory driver state and event broker (no restart durability, single-instance only)")
		store = driverstate.NewMemoryStore()
		broker = session.NewMemoryBroker()
	}
	locker := driverstate.NewLocker()

	thresholds := delay.Thresholds{
		DelayMinutes:         cfg.DelayThresholdMinutes,
		TrafficIncreaseRatio: cfg.TrafficIncreaseRatio,
		MinRerouteInterval:   time.Duration(cfg.MinRerouteIntervalSeconds) * time.Second,
	}
	worker := &ingest.Worker{Store: store, Locker: locker, Pipeline: pl, Broker: broker, Thresholds: thresholds}

	checker := &health.Checker{RDB: rdb, MapsAPIKeySet: cfg.GoogleMapsAPIKey != ""}

	srv := api.NewServer(pl, store, locker, broker, worker, checker)

	var overrideStore *config.OverrideStore
	if cfg.DatabaseURL != "" {
		overrideStore, err = config.NewOverrideStore(cfg.DatabaseURL)
		if err != nil {
			log.Printf("optimizer override store unavailable, running with YAML/env defaults only: %v", err)
			overrideStore = nil
		} else if err := overrideStore.Migrate(context.Background()); err != nil {
			log.Printf("optimizer override migration failed: %v", err)
		}
	}
	adminConfig := &api.AdminConfigHandler{Overrides: overrideStore, Base: *cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/optimize-route", srv.OptimizeHandler)
	mux.HandleFunc("/api/v1/health", srv.HealthHandler)
	mux.HandleFunc("/api/v1/ws/driver/", srv.DriverWSHandler)
	mux.HandleFunc("/api/v1/debug", srv.DebugHandler)
	mux.Handle("/api/v1/admin/config", adminConfig)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("route optimizer listening on %s", addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		dur := time.Since(start)
		status := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(dur.Seconds())
		log.Printf("%s %s %s %d %v", r.RemoteAddr, r.Method, r.URL.Path, rec.status, dur)
	})
}
