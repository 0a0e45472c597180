package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"analyticsgw/internal/audit"
	"analyticsgw/internal/credentials"
	"analyticsgw/internal/policy"
	"analyticsgw/internal/ratelimit"
	"analyticsgw/internal/rpc"
	"analyticsgw/internal/tools"
	"analyticsgw/internal/upstream"
	"analyticsgw/pkg/config"
	"analyticsgw/pkg/db"
	"analyticsgw/pkg/logger"
	"analyticsgw/pkg/middleware"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	if pool != nil {
		if err := audit.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
	}

	var gate *policy.Gate
	if cfg.PolicyFile != "" {
		g, err := policy.Load(cfg.PolicyFile)
		if err != nil {
			log.Fatalw("policy load", "file", cfg.PolicyFile, "err", err)
		}
		gate = g
		log.Infow("deployment policy active", "file", cfg.PolicyFile)
	}

	deps := tools.Deps{
		Codec:   credentials.NewCodec(cfg.RequiredCredentialFields),
		Factory: upstream.NewGoogleFactory(cfg.UpstreamUserAgent),
		Audit:   audit.NewRecorder(log, pool),
		Limiter: ratelimit.New(rdb, cfg.RateLimitPerMinute, time.Minute),
		Policy:  gate,
		Log:     log,
	}
	registry, err := tools.NewRegistry(log, cfg.CallTimeout, tools.Registrations(deps))
	if err != nil {
		log.Fatalw("registry", "err", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing(cfg))
	r.Use(middleware.JWTAuth(cfg, log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Get("/", rpc.InfoHandler("analytics-gateway", registry))
	r.Post("/", rpc.Handler(registry, log))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("gateway-service listening", "addr", cfg.HTTPAddr, "tools", registry.Names())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("gateway-service stopped")
}
