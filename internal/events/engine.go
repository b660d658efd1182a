// Package events derives the notification events for one control-loop cycle
// and keeps the latch and cooldown state that spans cycles.
package events

import (
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"sort"
	"time"

	"github.com/venkytv/drive-events/internal/params"
	"github.com/venkytv/drive-events/internal/toggles"
	"github.com/venkytv/drive-events/pkg/cycle"
)

const (
	// DefaultTickPeriod is one model update interval.
	DefaultTickPeriod = 50 * time.Millisecond
	// DefaultCooldown is the quiet window after a random event fires.
	DefaultCooldown     = 4 * time.Second
	DefaultHolidayGrace = 10 * time.Second
	DefaultModelLoadAt  = 5500 * time.Millisecond

	// CurrentRandomEventKey is the shared flag the UI reads to render the
	// active random event.
	CurrentRandomEventKey = "CurrentRandomEvent"
	// ModelNameKey names the configured neural feed-forward model.
	ModelNameKey = "NNFFModelName"

	msToKPH = 3.6
	msToMPH = 1 / 0.44704

	// Sampling period, in frames, for a single steer-saturated candidate.
	steerSaturatedCadence = 100
)

// Flag codes written under CurrentRandomEventKey.
const (
	codeFirefox = 1
	codeAccel30 = 2
	codeAccel35 = 3
	codeAccel40 = 4
	codeDejaVu  = 5
)

type Config struct {
	TickPeriod   time.Duration
	Cooldown     time.Duration
	HolidayGrace time.Duration
	ModelLoadAt  time.Duration

	// Memory holds volatile flags shared with the UI.
	Memory params.Store
	// Settings holds persisted user settings.
	Settings    params.Store
	CrashMarker Marker
	Rand        *rand.Rand

	Debug  bool
	Logger *slog.Logger
}

// Engine is not safe for concurrent use; the host loop owns it.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	rng    *rand.Rand

	elapsed time.Duration
	frame   uint64
	latched map[Name]bool

	cooldownActive  bool
	cooldownElapsed time.Duration

	peakAccel float64

	prevTrafficMode bool
	stoppedForLight bool
}

func New(cfg Config) *Engine {
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = DefaultTickPeriod
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.HolidayGrace <= 0 {
		cfg.HolidayGrace = DefaultHolidayGrace
	}
	if cfg.ModelLoadAt <= 0 {
		cfg.ModelLoadAt = DefaultModelLoadAt
	}
	if cfg.Memory == nil {
		cfg.Memory = params.Nop{}
	}
	if cfg.Settings == nil {
		cfg.Settings = params.Nop{}
	}
	if cfg.CrashMarker == nil {
		cfg.CrashMarker = FileMarker("")
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
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
	return &Engine{
		cfg:     cfg,
		logger:  logger,
		rng:     rng,
		latched: make(map[Name]bool),
	}
}

// Update evaluates one cycle and returns the events that fire in it.
func (e *Engine) Update(msg cycle.Message, t toggles.Toggles) *Set {
	out := NewSet()
	accel := finiteOrZero(msg.Car.AEgo)

	e.tickCooldown()

	if msg.Planner.ForcingStop {
		out.Add(ForcingStop)
	}

	if t.GreenLightAlert && !msg.Planner.TrackingLead && msg.Car.Standstill {
		if !msg.Planner.ModelStopped && e.stoppedForLight {
			out.Add(GreenLight)
		}
		e.stoppedForLight = msg.Planner.StopLightDetected
	} else {
		e.stoppedForLight = false
	}

	if !e.latched[HolidayActive] && t.HolidayActive() && e.elapsed >= e.cfg.HolidayGrace {
		e.fire(out, HolidayActive)
	}

	if msg.Planner.LeadDeparting {
		out.Add(LeadDeparting)
	}

	if !e.crashNoticed() && e.cfg.CrashMarker.Present() {
		if t.RandomEvents {
			e.fire(out, OpenpilotCrashedRandomEvent)
		} else {
			e.fire(out, OpenpilotCrashed)
		}
	}

	if !e.cooldownActive && t.RandomEvents {
		e.randomEvents(out, msg, accel, t.IsMetric)
	}

	if t.SpeedLimitAlert && msg.Planner.SpeedLimitChanged {
		out.Add(SpeedLimitChanged)
	}

	if !e.latched[TorqueNNLoad] && e.atCheckpoint(e.cfg.ModelLoadAt) && e.modelConfigured() {
		e.fire(out, TorqueNNLoad)
	}

	if msg.Car.TrafficModeActive != e.prevTrafficMode {
		if e.prevTrafficMode {
			out.Add(TrafficModeInactive)
		} else {
			out.Add(TrafficModeActive)
		}
		e.prevTrafficMode = msg.Car.TrafficModeActive
	}

	switch msg.Model.TurnDirection {
	case cycle.TurnLeft:
		out.Add(TurningLeft)
	case cycle.TurnRight:
		out.Add(TurningRight)
	}

	e.advance()
	return out
}

// randomEvents runs the cooldown-gated group. The gate is read once by the
// caller, so rules in this group may fire together in one cycle.
func (e *Engine) randomEvents(out *Set, msg cycle.Message, accel float64, metric bool) {
	if msg.Car.GasPressed {
		e.peakAccel = 0
	} else {
		e.peakAccel = math.Max(accel, e.peakAccel)
	}

	if accel < 1.5 {
		switch {
		case !e.latched[Accel30] && e.peakAccel >= 3.0 && e.peakAccel < 3.5:
			e.fireRandom(out, Accel30, codeAccel30)
			e.peakAccel = 0
		case !e.latched[Accel35] && e.peakAccel >= 3.5 && e.peakAccel < 4.0:
			e.fireRandom(out, Accel35, codeAccel35)
			e.peakAccel = 0
		case !e.latched[Accel40] && e.peakAccel >= 4.0:
			e.fireRandom(out, Accel40, codeAccel40)
			e.peakAccel = 0
		}
	}

	if !e.latched[DejaVuCurve] && msg.Planner.TakingCurveQuickly {
		e.fireRandom(out, DejaVuCurve, codeDejaVu)
	}

	if !e.latched[HAL9000] && msg.Controls.NoEntryEventTriggered {
		e.fireRandom(out, HAL9000, 0)
	}

	if msg.Controls.SteerSaturatedEventTriggered {
		e.arbitrateSteerSaturated(out)
	}

	if !e.latched[VCruise69] {
		speed := cruiseInUnits(msg.VCruise, metric)
		if speed >= 69 && speed < 70 {
			e.fireRandom(out, VCruise69, 0)
		}
	}

	if !e.latched[YourFrogTriedToKillMe] && msg.Controls.FCWEventTriggered {
		e.fireRandom(out, YourFrogTriedToKillMe, 0)
	}
}

// arbitrateSteerSaturated picks one unfired steer-saturated variant. Fewer
// remaining candidates means sampling less often.
func (e *Engine) arbitrateSteerSaturated(out *Set) {
	var candidates []Name
	if !e.latched[FirefoxSteerSaturated] {
		candidates = append(candidates, FirefoxSteerSaturated)
	}
	if !e.latched[GoatSteerSaturated] {
		candidates = append(candidates, GoatSteerSaturated)
	}
	if len(candidates) == 0 {
		return
	}
	cadence := uint64(steerSaturatedCadence / len(candidates))
	if e.frame%cadence != 0 {
		return
	}

	switch choice := candidates[e.rng.IntN(len(candidates))]; choice {
	case FirefoxSteerSaturated:
		e.fireRandom(out, choice, codeFirefox)
	default:
		e.fireRandom(out, choice, 0)
	}
}

func (e *Engine) fire(out *Set, n Name) {
	e.latched[n] = true
	out.Add(n)
	e.logger.Debug("event fired", "event", n, "frame", e.frame, "elapsed", e.elapsed)
}

// fireRandom latches n and starts the cooldown. A non-zero code is published
// to the shared flag store; write failures only cost UI fidelity.
func (e *Engine) fireRandom(out *Set, n Name, code int) {
	e.fire(out, n)
	e.cooldownActive = true
	e.cooldownElapsed = 0
	if code == 0 {
		return
	}
	if err := params.PutInt(e.cfg.Memory, CurrentRandomEventKey, code); err != nil {
		e.logger.Warn("shared flag write failed", "key", CurrentRandomEventKey, "code", code, "err", err)
	}
}

func (e *Engine) tickCooldown() {
	if !e.cooldownActive {
		return
	}
	e.cooldownElapsed += e.cfg.TickPeriod
	if e.cooldownElapsed < e.cfg.Cooldown {
		return
	}
	e.cooldownActive = false
	e.cooldownElapsed = 0
	if err := e.cfg.Memory.Remove(CurrentRandomEventKey); err != nil {
		e.logger.Warn("shared flag clear failed", "key", CurrentRandomEventKey, "err", err)
	}
	e.logger.Debug("random event cooldown expired", "frame", e.frame)
}

// advance derives the session age from the frame count so it never drifts
// from tick time, whatever the tick period.
func (e *Engine) advance() {
	e.frame++
	e.elapsed = time.Duration(e.frame) * e.cfg.TickPeriod
}

// atCheckpoint reports whether this cycle covers the instant at.
func (e *Engine) atCheckpoint(at time.Duration) bool {
	return e.elapsed <= at && at < e.elapsed+e.cfg.TickPeriod
}

func (e *Engine) crashNoticed() bool {
	return e.latched[OpenpilotCrashed] || e.latched[OpenpilotCrashedRandomEvent]
}

func (e *Engine) modelConfigured() bool {
	name, err := e.cfg.Settings.Get(ModelNameKey)
	if err != nil {
		if !errors.Is(err, params.ErrNotFound) {
			e.logger.Warn("settings lookup failed", "key", ModelNameKey, "err", err)
		}
		return false
	}
	return name != ""
}

// Clock returns the frame and session age the next Update will observe.
func (e *Engine) Clock() (uint64, time.Duration) {
	return e.frame, e.elapsed
}

// Latched reports whether the one-shot event n has fired this session.
func (e *Engine) Latched(n Name) bool {
	return e.latched[n]
}

// Status is a point-in-time view of the engine state.
type Status struct {
	Elapsed           time.Duration
	Frame             uint64
	Latched           []Name
	CooldownActive    bool
	CooldownRemaining time.Duration
	PeakAcceleration  float64
	TrafficMode       bool
	StoppedForLight   bool
}

func (e *Engine) Snapshot() Status {
	latched := make([]Name, 0, len(e.latched))
	for n := range e.latched {
		latched = append(latched, n)
	}
	sort.Slice(latched, func(i, j int) bool { return latched[i] < latched[j] })

	st := Status{
		Elapsed:          e.elapsed,
		Frame:            e.frame,
		Latched:          latched,
		CooldownActive:   e.cooldownActive,
		PeakAcceleration: e.peakAccel,
		TrafficMode:      e.prevTrafficMode,
		StoppedForLight:  e.stoppedForLight,
	}
	if e.cooldownActive {
		st.CooldownRemaining = e.cfg.Cooldown - e.cooldownElapsed
	}
	return st
}

func cruiseInUnits(v float64, metric bool) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if metric {
		return v * msToKPH
	}
	return v * msToMPH
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
