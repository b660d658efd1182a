package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/venkytv/drive-events/internal/events"
	"github.com/venkytv/drive-events/internal/notifier"
	"github.com/venkytv/drive-events/internal/params"
	"github.com/venkytv/drive-events/internal/runner"
	"github.com/venkytv/drive-events/internal/toggles"
	"github.com/venkytv/drive-events/pkg/cycle"
)

func main() {
	_ = godotenv.Load(".env")

	var (
		natsURL       = flag.String("nats-url", envDefault("NATS_URL", nats.DefaultURL), "NATS server URL")
		prefix        = flag.String("subject-prefix", envDefault("SUBJECT_PREFIX", "drive."), "Subject prefix for cycle input, toggles and events")
		primeStream   = flag.String("prime-stream", envDefault("PRIME_STREAM", ""), "Optional JetStream stream to prime toggles from")
		kvBucket      = flag.String("kv-bucket", envDefault("KV_BUCKET", ""), "JetStream KV bucket for shared flags (empty keeps them in memory)")
		settingsDir   = flag.String("settings-dir", envDefault("SETTINGS_DIR", "/data/params/d"), "Directory of persisted settings")
		crashDir      = flag.String("crash-dir", envDefault("CRASH_DIR", events.DefaultCrashDir), "Directory holding the crash marker file")
		togglesFile   = flag.String("toggles", envDefault("TOGGLES_FILE", ""), "YAML toggle bundle")
		tickPeriod    = flag.Duration("tick", envDuration("TICK_PERIOD", events.DefaultTickPeriod), "Model update interval")
		staleAfter    = flag.Duration("stale-after", envDuration("STALE_AFTER", 2*time.Second), "Warn when no cycle arrives for this long")
		emitTimeout   = flag.Duration("emit-timeout", envDuration("EMIT_TIMEOUT", 500*time.Millisecond), "Deadline for forwarding one cycle's events")
		statusAddr    = flag.String("status-addr", envDefault("STATUS_ADDR", "127.0.0.1:8080"), "Listen address for HTTP status (empty to disable)")
		statusOrigins = flag.String("status-origins", envDefault("STATUS_ORIGINS", ""), "Comma-separated CORS origins for the status endpoint")
		webhookURL    = flag.String("webhook-url", envDefault("WEBHOOK_URL", ""), "Optional HTTP endpoint to post derived events to")
		debug         = flag.Bool("debug", envBool("DEBUG", false), "Enable debug logging")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	if *debug {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	bundle, err := toggles.Load(*togglesFile)
	if err != nil {
		log.Fatalf("load toggles: %v", err)
	}

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		log.Fatalf("connect to nats: %v", err)
	}
	defer nc.Drain()

	var memory params.Store = params.NewMemory()
	if *kvBucket != "" {
		kv, err := params.NewKV(nc, *kvBucket)
		if err != nil {
			log.Fatalf("open kv bucket: %v", err)
		}
		memory = kv
	}

	var settings params.Store = params.Nop{}
	if *settingsDir != "" {
		dir, err := params.NewDir(*settingsDir)
		if err != nil {
			logger.Warn("settings directory unavailable", "dir", *settingsDir, "err", err)
		} else {
			settings = dir
		}
	}

	engine := events.New(events.Config{
		TickPeriod:  *tickPeriod,
		Memory:      memory,
		Settings:    settings,
		CrashMarker: events.CrashMarker(*crashDir),
		Logger:      logger,
	})

	notify := notifier.Multi{
		notifier.NATS{Conn: nc, Subject: cycle.Subject(*prefix, notifier.EventsSubject)},
	}
	if *webhookURL != "" {
		notify = append(notify, notifier.Webhook{Endpoint: *webhookURL})
	}

	cfg := runner.Config{
		Prefix:        *prefix,
		PrimeStream:   *primeStream,
		StaleAfter:    *staleAfter,
		EmitTimeout:   *emitTimeout,
		StatusAddr:    *statusAddr,
		StatusOrigins: splitList(*statusOrigins),
		Toggles:       bundle,
		Debug:         *debug,
		Logger:        logger,
	}
	r := runner.New(nc, engine, notify, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := r.Start(ctx); err != nil {
		log.Fatalf("runner failed: %v", err)
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || v == "true" || v == "TRUE" || v == "yes" || v == "on"
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
