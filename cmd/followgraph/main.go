package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"followgraph/config"
	"followgraph/internal/backfill"
	"followgraph/internal/cache"
	"followgraph/internal/count"
	"followgraph/internal/hub"
	"followgraph/internal/logger"
	"followgraph/internal/queue"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("followgraph.yml"); err == nil {
		return "followgraph.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "followgraph.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "followgraph.yml"
}

func applyDefaults(cfg *config.Config) {
	if cfg.Followgraph.Hub.BaseURL == "" {
		cfg.Followgraph.Hub.BaseURL = "http://127.0.0.1:2281"
	}
	if cfg.Followgraph.Hub.Timeout <= 0 {
		cfg.Followgraph.Hub.Timeout = 10 * time.Second
	}
	if cfg.Followgraph.Hub.PageSize <= 0 {
		cfg.Followgraph.Hub.PageSize = 1000
	}

	if cfg.Followgraph.Cache.Addr == "" {
		cfg.Followgraph.Cache.Addr = "127.0.0.1:6379"
	}
	if cfg.Followgraph.Cache.KeyPrefix == "" {
		cfg.Followgraph.Cache.KeyPrefix = "followgraph:graph"
	}
	if cfg.Followgraph.Cache.FallbackTTL <= 0 {
		cfg.Followgraph.Cache.FallbackTTL = 1 * time.Hour
	}

	if cfg.Followgraph.Queue.Addr == "" {
		cfg.Followgraph.Queue.Addr = cfg.Followgraph.Cache.Addr
	}
	if cfg.Followgraph.Queue.Key == "" {
		cfg.Followgraph.Queue.Key = "followgraph:backfill"
	}
	if cfg.Followgraph.Queue.BlockTimeout <= 0 {
		cfg.Followgraph.Queue.BlockTimeout = 5 * time.Second
	}

	if cfg.Followgraph.Counts.FastCap <= 0 {
		cfg.Followgraph.Counts.FastCap = 1000
	}
	if cfg.Followgraph.Counts.FullMaxPages <= 0 {
		cfg.Followgraph.Counts.FullMaxPages = 200
	}
	if cfg.Followgraph.Counts.FullDeadline <= 0 {
		cfg.Followgraph.Counts.FullDeadline = 30 * time.Second
	}

	if cfg.Followgraph.Backfill.BatchSize <= 0 {
		cfg.Followgraph.Backfill.BatchSize = 100
	}
	if cfg.Followgraph.Backfill.Workers <= 0 {
		cfg.Followgraph.Backfill.Workers = 10
	}
	if cfg.Followgraph.Backfill.Interval <= 0 {
		cfg.Followgraph.Backfill.Interval = 12 * time.Hour
	}
	if cfg.Followgraph.Backfill.RateBurst <= 0 {
		cfg.Followgraph.Backfill.RateBurst = 50
	}

	if cfg.Followgraph.Metrics.Addr == "" {
		cfg.Followgraph.Metrics.Addr = "127.0.0.1:9432"
	}

	if cfg.Followgraph.Logging.Level == "" {
		cfg.Followgraph.Logging.Level = "info"
	}
}

func loadConfig(args []string) *config.Config {
	configArg := ""
	if len(args) > 0 {
		configArg = args[0]
	}

	configPath := findConfigFile(configArg)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyDefaults(cfg)

	if err := logger.Init(cfg.Followgraph.Logging.Enabled, cfg.Followgraph.Logging.Level, cfg.Followgraph.Logging.File, cfg.Followgraph.Logging.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Infof("Config loaded from: %s", configPath)
	return cfg
}

func newHubClient(cfg *config.Config) *hub.Client {
	client, err := hub.NewClient(hub.Config{
		BaseURL: cfg.Followgraph.Hub.BaseURL,
		Timeout: cfg.Followgraph.Hub.Timeout,
		Headers: cfg.Followgraph.Hub.Headers,
	})
	if err != nil {
		log.Fatalf("Failed to create hub client: %v", err)
	}
	return client
}

func runServe(args []string) {
	cfg := loadConfig(args)
	logger.Infof("Followgraph starting")

	hubClient := newHubClient(cfg)

	graphCache, err := cache.New(cache.Config{
		Addr:      cfg.Followgraph.Cache.Addr,
		Password:  cfg.Followgraph.Cache.Password,
		DB:        cfg.Followgraph.Cache.DB,
		KeyPrefix: cfg.Followgraph.Cache.KeyPrefix,
	})
	if err != nil {
		log.Fatalf("Failed to create graph cache: %v", err)
	}

	jobs, err := queue.New(queue.Config{
		Addr:         cfg.Followgraph.Queue.Addr,
		Password:     cfg.Followgraph.Queue.Password,
		DB:           cfg.Followgraph.Queue.DB,
		Key:          cfg.Followgraph.Queue.Key,
		BlockTimeout: cfg.Followgraph.Queue.BlockTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to create work queue: %v", err)
	}

	var limiter *rate.Limiter
	if cfg.Followgraph.Backfill.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Followgraph.Backfill.RateLimit), cfg.Followgraph.Backfill.RateBurst)
		logger.Infof("Backfill upstream rate limit: %.1f req/s burst=%d", cfg.Followgraph.Backfill.RateLimit, cfg.Followgraph.Backfill.RateBurst)
	}

	worker := backfill.NewWorker(hubClient, graphCache, limiter, cfg.Followgraph.Hub.PageSize)
	pipe := backfill.NewPipeline(hubClient, jobs, worker, backfill.Config{
		BatchSize: cfg.Followgraph.Backfill.BatchSize,
		Workers:   cfg.Followgraph.Backfill.Workers,
		Interval:  cfg.Followgraph.Backfill.Interval,
		Immediate: cfg.Followgraph.Backfill.Immediate,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := pipe.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorf("Backfill pipeline error: %v", err)
		}
	}()

	var adminSrv *http.Server
	if cfg.Followgraph.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/backfill", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			if err := pipe.Trigger(r.Context()); err != nil {
				logger.Errorf("Admin backfill trigger failed: %v", err)
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusAccepted)
		})
		adminSrv = &http.Server{Addr: cfg.Followgraph.Metrics.Addr, Handler: mux}
		go func() {
			logger.Infof("Metrics/admin listener on %s", cfg.Followgraph.Metrics.Addr)
			if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("Metrics listener error: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	cancel()
	time.Sleep(1 * time.Second)

	if adminSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Error closing metrics listener: %v", err)
		}
		shutdownCancel()
	}
	if err := jobs.Close(); err != nil {
		logger.Errorf("Error closing work queue: %v", err)
	}
	if err := graphCache.Close(); err != nil {
		logger.Errorf("Error closing graph cache: %v", err)
	}

	logger.Infof("Followgraph stopped")
}

func runBackfill(args []string) int {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var cfgArgs []string
	if *configArg != "" {
		cfgArgs = []string{*configArg}
	}
	cfg := loadConfig(cfgArgs)

	hubClient := newHubClient(cfg)
	jobs, err := queue.New(queue.Config{
		Addr:         cfg.Followgraph.Queue.Addr,
		Password:     cfg.Followgraph.Queue.Password,
		DB:           cfg.Followgraph.Queue.DB,
		Key:          cfg.Followgraph.Queue.Key,
		BlockTimeout: cfg.Followgraph.Queue.BlockTimeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create work queue: %v\n", err)
		return 1
	}
	defer jobs.Close()

	pipe := backfill.NewPipeline(hubClient, jobs, nil, backfill.Config{
		BatchSize: cfg.Followgraph.Backfill.BatchSize,
	})
	if err := pipe.Trigger(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "backfill trigger failed: %v\n", err)
		return 1
	}

	length, err := jobs.Length(context.Background())
	if err == nil {
		fmt.Printf("backfill enqueued, queue depth now %d\n", length)
	}
	return 0
}

func runCount(args []string) int {
	fs := flag.NewFlagSet("count", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	subject := fs.Uint64("subject", 0, "Subject id to count")
	target := fs.Uint64("target", 0, "Optional reaction target id")
	mode := fs.String("mode", "fast", "Count mode: fast or full")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *subject == 0 {
		fmt.Fprintln(os.Stderr, "-subject is required")
		return 2
	}

	var cfgArgs []string
	if *configArg != "" {
		cfgArgs = []string{*configArg}
	}
	cfg := loadConfig(cfgArgs)

	hubClient := newHubClient(cfg)

	// The cache is best effort here: a spot check should still work
	// when Redis is down.
	var snapshotCache count.SnapshotCache
	graphCache, err := cache.New(cache.Config{
		Addr:      cfg.Followgraph.Cache.Addr,
		Password:  cfg.Followgraph.Cache.Password,
		DB:        cfg.Followgraph.Cache.DB,
		KeyPrefix: cfg.Followgraph.Cache.KeyPrefix,
	})
	if err != nil {
		logger.Warnf("Graph cache unavailable, counting without it: %v", err)
	} else {
		snapshotCache = graphCache
		defer graphCache.Close()
	}

	svc := count.NewService(hubClient, snapshotCache, count.Config{
		FastCap:      cfg.Followgraph.Counts.FastCap,
		FullMaxPages: cfg.Followgraph.Counts.FullMaxPages,
		FullDeadline: cfg.Followgraph.Counts.FullDeadline,
		FallbackTTL:  cfg.Followgraph.Cache.FallbackTTL,
		PageSize:     cfg.Followgraph.Hub.PageSize,
	})

	ctx := context.Background()
	enc := json.NewEncoder(os.Stdout)

	if *target != 0 {
		totals := svc.ReactionCounts(ctx, *subject, *target, count.Mode(*mode))
		if err := enc.Encode(totals); err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
			return 1
		}
		return 0
	}

	counts := svc.FollowCounts(ctx, *subject, count.Mode(*mode))
	if err := enc.Encode(counts); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe(os.Args[2:])
			return
		case "backfill":
			os.Exit(runBackfill(os.Args[2:]))
		case "count":
			os.Exit(runCount(os.Args[2:]))
		default:
			// Backward-compatible mode: first arg is config path.
			runServe(os.Args[1:])
			return
		}
	}

	runServe(nil)
}
