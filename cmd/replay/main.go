package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"golang.org/x/time/rate"

	"github.com/venkytv/drive-events/internal/events"
	"github.com/venkytv/drive-events/internal/runner"
	"github.com/venkytv/drive-events/pkg/cycle"
)

func main() {
	_ = godotenv.Load(".env")

	var (
		natsURL     = flag.String("nats-url", envDefault("NATS_URL", nats.DefaultURL), "NATS server URL")
		prefix      = flag.String("subject-prefix", envDefault("SUBJECT_PREFIX", "drive."), "Subject prefix for cycle input")
		file        = flag.String("scenario", envDefault("SCENARIO", ""), "YAML scenario to replay (required)")
		togglesFile = flag.String("toggles", envDefault("TOGGLES_FILE", ""), "Optional toggle bundle to publish before replaying")
		tick        = flag.Duration("tick", envDuration("TICK_PERIOD", events.DefaultTickPeriod), "Interval between published cycles")
		loop        = flag.Bool("loop", envBool("LOOP", false), "Replay the scenario until interrupted")
		debug       = flag.Bool("debug", envBool("DEBUG", false), "Enable debug logging")
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

	if *file == "" {
		log.Fatal("scenario is required")
	}
	sc, err := loadScenario(*file)
	if err != nil {
		log.Fatalf("load scenario: %v", err)
	}
	msgs := sc.expand()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	nc, err := connectWithRetry(ctx, logger, *natsURL)
	if err != nil {
		logger.Error("connect to nats failed", "err", err)
		return
	}
	defer nc.Drain()

	if *togglesFile != "" {
		data, err := os.ReadFile(*togglesFile)
		if err != nil {
			log.Fatalf("read toggles: %v", err)
		}
		if err := nc.Publish(cycle.Subject(*prefix, runner.TogglesSubject), data); err != nil {
			log.Fatalf("publish toggles: %v", err)
		}
	}

	pub := cycle.NewPublisher(nc, *prefix)
	limiter := rate.NewLimiter(rate.Every(*tick), 1)
	logger.Info("replaying scenario", "file", *file, "cycles", len(msgs), "tick", *tick, "loop", *loop)

	for {
		for i, msg := range msgs {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			msg.GeneratedAt = time.Now().UTC()
			if err := pub.Publish(ctx, msg); err != nil {
				logger.Error("publish cycle failed", "err", err, "index", i)
				continue
			}
			logger.Debug("cycle published", "index", i)
		}
		if !*loop {
			logger.Info("scenario complete", "cycles", len(msgs))
			return
		}
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || v == "true" || v == "TRUE" || v == "yes" || v == "on"
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

func connectWithRetry(ctx context.Context, logger *slog.Logger, url string) (*nats.Conn, error) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		nc, err := nats.Connect(
			url,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.RetryOnFailedConnect(true),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warn("nats disconnected", "err", err)
					return
				}
				logger.Warn("nats disconnected")
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				logger.Info("nats reconnected")
			}),
		)
		if err == nil {
			return nc, nil
		}

		logger.Error("connect to nats failed", "err", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}
