package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/zeeshanml/math-assistant/internal/assistant"
	"github.com/zeeshanml/math-assistant/internal/llm"
	"github.com/zeeshanml/math-assistant/internal/session"
	"github.com/zeeshanml/math-assistant/internal/telemetry"
	"github.com/zeeshanml/math-assistant/internal/tools"
	"github.com/zeeshanml/math-assistant/internal/web"
)

// main is the composition root: it loads configuration, wires the services
// together and runs the web server.
func main() {
	buildInfo := GetBuildInfo()

	// 1. LOAD CONFIGURATION
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("❌ FATAL: Configuration Error: %v", err)
	}
	logCloser := telemetry.SetupLogging(cfg.LogFile)
	defer logCloser.Close()
	log.Printf("🚀 Starting Math Assistant | Version: %s | Commit: %s", buildInfo.Version, buildInfo.GitCommit)
	log.Printf("✅ Configuration loaded (provider=%s, model=%s, max_steps=%d).", cfg.Provider, cfg.Model, cfg.File.MaxSteps)

	// 2. INITIALIZE SERVICES
	tracer, shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		TraceFile:      cfg.TraceFile,
		ServiceVersion: buildInfo.Version,
	})
	if err != nil {
		log.Fatalf("❌ FATAL: Could not initialize telemetry: %v", err)
	}
	defer shutdownTelemetry()

	newStore, profiler := initializeStorage(cfg)

	build := assistant.NewRouterBuilder(assistant.BuilderConfig{
		Provider:     cfg.Provider,
		Model:        cfg.Model,
		BaseURL:      cfg.BaseURL,
		Temperature:  cfg.File.Temperature,
		MaxTokens:    cfg.File.MaxTokens,
		Router:       cfg.File.Config,
		Encyclopedia: tools.NewWikipediaClient(cfg.WikipediaLang),
		Profiler:     profiler,
		Tracer:       tracer,
	})
	manager := assistant.NewManager(assistant.ManagerConfig{
		NewStore:      newStore,
		Build:         build,
		Settings:      cfg.File.Settings,
		IdleTTL:       cfg.SessionTTL,
		DefaultAPIKey: cfg.APIKey,
	})
	log.Println("✅ All services initialized.")

	// 3. START BACKGROUND PROCESSES
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go manager.RunJanitor(janitorCtx, janitorInterval(cfg.SessionTTL))

	// 4. SETUP AND RUN THE WEB SERVER
	gin.SetMode(os.Getenv("GIN_MODE"))
	server := web.NewServer(manager, web.Config{
		Provider:      cfg.Provider,
		Model:         cfg.Model,
		Version:       buildInfo.String(),
		CookieTTL:     cfg.SessionTTL,
		SecureCookies: os.Getenv("GIN_MODE") == "release",
		Profiler:      profiler,
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%s", cfg.Port), Handler: server.Handler()}
	runServerWithGracefulShutdown(srv)
}

// initializeStorage picks the transcript backend. With REDIS_ADDR set,
// transcripts and usage profiles live in Redis; otherwise both stay in
// process memory and profiling is off.
func initializeStorage(cfg *AppConfig) (assistant.StoreFactory, *llm.Profiler) {
	if cfg.RedisAddr == "" {
		log.Println("ℹ️ REDIS_ADDR not set, keeping transcripts in memory.")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("❌ FATAL: Could not connect to Redis: %v", err)
	}
	log.Printf("✅ Connected to Redis at %s.", cfg.RedisAddr)

	// Transcripts outlive the in-process session by one TTL so a restart
	// within the window picks the chat back up.
	ttl := 2 * cfg.SessionTTL
	newStore := func(sessionID string) session.Store {
		return session.NewRedisStore(rdb, sessionID, ttl)
	}
	return newStore, llm.NewProfiler(rdb)
}

func janitorInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	return interval
}

// runServerWithGracefulShutdown handles the server lifecycle.
func runServerWithGracefulShutdown(srv *http.Server) {
	go func() {
		log.Printf("👂 Math Assistant is listening on http://localhost%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Listen error: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("❌ Server shutdown failed:", err)
	}

	log.Println("👋 Server exited gracefully.")
}
