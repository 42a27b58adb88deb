package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"chatrelay/pkg/api"
	"chatrelay/pkg/banner"
	"chatrelay/pkg/config"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/relay"
	"chatrelay/pkg/security"
	"chatrelay/pkg/shutdown"
	"chatrelay/pkg/validation"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, cfgVal, setFlags := config.ParseCommandFlags()

	// file flag wins over env
	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		logger.InitWithLevel("")
		logger.Error("config_load_failed", "path", cfgPath, "error", err)
		return
	}
	logger.InitWithLevel(cfg.Logging.Level)

	// flags win over config/env when explicitly provided
	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrVal
	}

	validation.SetMediaPolicy(validation.MediaPolicy{
		MaxBytes:    cfg.Media.MaxBytes,
		AllowedMIME: cfg.Media.AllowedMIME,
	})

	hub := relay.New(relay.Options{
		AuthTimeout:    cfg.Chat.AuthTimeout.Duration(),
		SendBuffer:     cfg.Chat.SendBuffer,
		MaxFrameBytes:  cfg.Chat.MaxFrameBytes,
		AllowedOrigins: cfg.Security.CORS.AllowedOrigins,
	})

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	stopSweep, err := relay.StartSweeper(ctx, hub, cfg.Chat.SweepCron, cfg.Chat.IdleTimeout.Duration())
	if err != nil {
		logger.Error("sweeper_start_failed", "error", err)
		return
	}
	defer stopSweep()

	// config sources summary for the banner
	srcs := []string{}
	if len(setFlags) > 0 {
		srcs = append(srcs, "flags")
	}
	if envUsed {
		srcs = append(srcs, "env")
	}
	if _, err := config.Load(cfgPath); err == nil {
		srcs = append(srcs, "config")
	}
	verStr := version
	if commit != "none" {
		verStr = verStr + " (" + commit + ")"
	}
	if buildDate != "unknown" {
		verStr = verStr + " @ " + buildDate
	}
	banner.Print(addr, strings.Join(srcs, ", "), verStr)

	mux := http.NewServeMux()
	mux.Handle("/", api.Router(hub))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	mux.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))

	wrapped := security.Middleware(security.SecConfig{
		AllowedOrigins: cfg.Security.CORS.AllowedOrigins,
		RPS:            cfg.Security.RateLimit.RPS,
		Burst:          cfg.Security.RateLimit.Burst,
		IPWhitelist:    cfg.Security.IPWhitelist,
	})(mux)

	srv := &http.Server{Addr: addr, Handler: wrapped}
	go func() {
		<-ctx.Done()
		shutCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = srv.Shutdown(shutCtx)
	}()

	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	var errServe error
	if cert != "" && key != "" {
		errServe = srv.ListenAndServeTLS(cert, key)
	} else {
		errServe = srv.ListenAndServe()
	}
	if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
		logger.Error("server_exit", "error", errServe)
	}
}
