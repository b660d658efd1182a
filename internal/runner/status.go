package runner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/venkytv/drive-events/internal/toggles"
)

type statusResponse struct {
	ObservedAt time.Time       `json:"observed_at"`
	Engine     engineState     `json:"engine"`
	Input      inputStatus     `json:"input"`
	Toggles    toggles.Toggles `json:"toggles"`
}

type engineState struct {
	Elapsed           string   `json:"elapsed"`
	Frame             uint64   `json:"frame"`
	Latched           []string `json:"latched"`
	CooldownActive    bool     `json:"cooldown_active"`
	CooldownRemaining string   `json:"cooldown_remaining,omitempty"`
	PeakAcceleration  float64  `json:"peak_acceleration"`
	TrafficMode       bool     `json:"traffic_mode"`
	StoppedForLight   bool     `json:"stopped_for_light"`
}

type inputStatus struct {
	Source   string    `json:"source,omitempty"`
	LastSeen time.Time `json:"last_seen"`
	Cycles   uint64    `json:"cycles"`
	Dropped  uint64    `json:"dropped"`
	Stale    bool      `json:"stale"`
	IdleFor  string    `json:"idle_for,omitempty"`
}

func (r *Runner) snapshot(at time.Time) statusResponse {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.engine.Snapshot()
	latched := make([]string, len(st.Latched))
	for i, n := range st.Latched {
		latched[i] = string(n)
	}
	eng := engineState{
		Elapsed:          st.Elapsed.String(),
		Frame:            st.Frame,
		Latched:          latched,
		CooldownActive:   st.CooldownActive,
		PeakAcceleration: st.PeakAcceleration,
		TrafficMode:      st.TrafficMode,
		StoppedForLight:  st.StoppedForLight,
	}
	if st.CooldownActive {
		eng.CooldownRemaining = st.CooldownRemaining.String()
	}

	in := inputStatus{
		Source:   r.input.source,
		LastSeen: r.input.lastSeen,
		Cycles:   r.input.cycles,
		Dropped:  r.input.dropped,
		Stale:    r.input.stale,
	}
	if idle := r.input.idleFor(at); idle > 0 {
		in.IdleFor = idle.Round(time.Millisecond).String()
	}

	return statusResponse{
		ObservedAt: at,
		Engine:     eng,
		Input:      in,
		Toggles:    r.toggles,
	}
}

func (r *Runner) router() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)

	if len(r.cfg.StatusOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins: r.cfg.StatusOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		})
		mux.Use(c.Handler)
	}

	mux.Get("/", r.handleStatus)
	mux.Get("/healthz", r.handleHealth)
	return mux
}

func (r *Runner) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(r.snapshot(now())); err != nil {
		r.logger.Error("encode status failed", "err", err)
	}
}

// handleHealth fails while the cycle input is stale.
func (r *Runner) handleHealth(w http.ResponseWriter, _ *http.Request) {
	r.mu.Lock()
	stale := r.input.stale
	r.mu.Unlock()

	if stale {
		http.Error(w, "cycle input stale", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (r *Runner) serveStatus(ctx context.Context) error {
	srv := &http.Server{
		Addr:              r.cfg.StatusAddr,
		Handler:           r.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	r.logger.Info("status server listening", "addr", r.cfg.StatusAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
