// Package runner hosts the event engine: it consumes cycle messages from
// NATS, steps the engine once per cycle and forwards derived events.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/venkytv/drive-events/internal/events"
	"github.com/venkytv/drive-events/internal/notifier"
	"github.com/venkytv/drive-events/internal/toggles"
	"github.com/venkytv/drive-events/pkg/cycle"
)

// TogglesSubject is the subject suffix for toggle bundle updates.
const TogglesSubject = "toggles"

var now = time.Now

type Config struct {
	Prefix      string
	PrimeStream string
	PollEvery   time.Duration
	StaleAfter  time.Duration
	// EmitTimeout bounds each notifier call so a slow sink cannot hold up
	// the cycle subscription.
	EmitTimeout   time.Duration
	StatusAddr    string
	StatusOrigins []string
	Toggles       toggles.Toggles
	Debug         bool
	Logger        *slog.Logger
}

type Runner struct {
	cfg      Config
	nc       *nats.Conn
	engine   *events.Engine
	notifier notifier.Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	toggles toggles.Toggles
	input   inputState
}

func New(nc *nats.Conn, engine *events.Engine, n notifier.Notifier, cfg Config) *Runner {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 2 * time.Second
	}
	if cfg.EmitTimeout <= 0 {
		cfg.EmitTimeout = 500 * time.Millisecond
	}
	cfg.Prefix = strings.TrimSuffix(cfg.Prefix, ".")
	logger := cfg.Logger
	if logger == nil {
		level := slog.LevelInfo
		if cfg.Debug {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))
	}
	if engine == nil {
		engine = events.New(events.Config{Logger: logger})
	}
	if n == nil {
		n = notifier.Nop{}
	}
	return &Runner{
		cfg:      cfg,
		nc:       nc,
		engine:   engine,
		notifier: n,
		logger:   logger,
		toggles:  cfg.Toggles,
	}
}

func (r *Runner) Start(ctx context.Context) error {
	if r.nc == nil {
		return errors.New("nats connection is required")
	}
	if r.cfg.PrimeStream != "" {
		if err := r.primeToggles(ctx); err != nil {
			r.logger.Warn("prime toggles failed", "err", err)
		}
	}

	cycleSubject := cycle.Subject(r.cfg.Prefix, cycle.InputSubject)
	sub, err := r.nc.Subscribe(cycleSubject, func(msg *nats.Msg) {
		r.handleMessage(ctx, msg)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	togglesSubject := cycle.Subject(r.cfg.Prefix, TogglesSubject)
	tsub, err := r.nc.Subscribe(togglesSubject, r.handleToggles)
	if err != nil {
		return err
	}
	defer tsub.Unsubscribe()
	r.logger.Info("runner subscribed", "cycle_subject", cycleSubject, "toggles_subject", togglesSubject, "prime_stream", r.cfg.PrimeStream)

	if r.cfg.StatusAddr != "" {
		go func() {
			if err := r.serveStatus(ctx); err != nil {
				r.logger.Error("status server failed", "addr", r.cfg.StatusAddr, "err", err)
			}
		}()
	}

	ticker := time.NewTicker(r.cfg.PollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopping")
			return nil
		case <-ticker.C:
			r.scan(now())
		}
	}
}

func (r *Runner) handleMessage(ctx context.Context, msg *nats.Msg) {
	m, err := cycle.Unmarshal(msg.Data)
	if err != nil {
		r.mu.Lock()
		r.input.dropped++
		r.mu.Unlock()
		r.logger.Error("failed to decode cycle", "subject", msg.Subject, "err", err)
		return
	}
	r.step(ctx, m)
}

// step runs one engine cycle and forwards any derived events.
func (r *Runner) step(ctx context.Context, m cycle.Message) {
	at := now()

	r.mu.Lock()
	frame, elapsed := r.engine.Clock()
	out := r.engine.Update(m, r.toggles)
	if r.input.stale {
		r.logger.Info("cycle input resumed", "source", sourceOrUnknown(m.Source), "idle_for", r.input.idleFor(at))
		r.input.stale = false
	}
	r.input.source = m.Source
	r.input.lastSeen = at
	r.input.cycles++
	r.mu.Unlock()

	if out.Len() == 0 {
		return
	}
	em := cycle.Emission{
		Source:  m.Source,
		At:      at,
		Frame:   frame,
		Elapsed: elapsed,
		Events:  out.Strings(),
	}
	r.logger.Debug("events derived", "frame", em.Frame, "events", em.Events)
	emitCtx, cancel := context.WithTimeout(ctx, r.cfg.EmitTimeout)
	defer cancel()
	if err := r.notifier.Emit(emitCtx, em); err != nil {
		r.logger.Error("emit failed", "frame", em.Frame, "err", err)
	}
}

func (r *Runner) handleToggles(msg *nats.Msg) {
	t, err := toggles.Parse(msg.Data)
	if err != nil {
		r.logger.Error("failed to decode toggles", "subject", msg.Subject, "err", err)
		return
	}
	r.mu.Lock()
	r.toggles = t
	r.mu.Unlock()
	r.logger.Info("toggles updated", "random_events", t.RandomEvents, "green_light_alert", t.GreenLightAlert,
		"speed_limit_alert", t.SpeedLimitAlert, "is_metric", t.IsMetric, "holiday", t.HolidayTheme)
}

// scan flags the input feed as stale once, and leaves recovery to step.
func (r *Runner) scan(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.input.lastSeen.IsZero() || r.input.stale {
		return
	}
	idle := r.input.idleFor(at)
	if idle <= r.cfg.StaleAfter {
		return
	}
	r.input.stale = true
	r.logger.Warn("cycle input stale", "source", sourceOrUnknown(r.input.source), "idle_for", idle, "stale_after", r.cfg.StaleAfter)
}

// primeToggles loads the last retained toggle bundle from a JetStream stream.
func (r *Runner) primeToggles(ctx context.Context) error {
	js, err := r.nc.JetStream()
	if err != nil {
		return err
	}

	subject := cycle.Subject(r.cfg.Prefix, TogglesSubject)
	r.logger.Info("priming toggles from stream", "stream", r.cfg.PrimeStream, "subject", subject)
	sub, err := js.SubscribeSync(subject,
		nats.BindStream(r.cfg.PrimeStream),
		nats.ManualAck(),
		nats.DeliverLastPerSubject(),
		nats.MaxDeliver(1),
	)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	timeoutCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	for {
		msg, err := sub.NextMsgWithContext(timeoutCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		r.handleToggles(msg)
		_ = msg.Ack()
	}
}
