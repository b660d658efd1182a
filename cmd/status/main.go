package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

type statusResponse struct {
	ObservedAt time.Time   `json:"observed_at"`
	Engine     engineState `json:"engine"`
	Input      inputState  `json:"input"`
	Toggles    toggleState `json:"toggles"`
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

type inputState struct {
	Source   string    `json:"source,omitempty"`
	LastSeen time.Time `json:"last_seen"`
	Cycles   uint64    `json:"cycles"`
	Dropped  uint64    `json:"dropped"`
	Stale    bool      `json:"stale"`
	IdleFor  string    `json:"idle_for,omitempty"`
}

type toggleState struct {
	RandomEvents    bool   `json:"random_events"`
	GreenLightAlert bool   `json:"green_light_alert"`
	SpeedLimitAlert bool   `json:"speed_limit_alert"`
	IsMetric        bool   `json:"is_metric"`
	HolidayTheme    string `json:"current_holiday_theme"`
}

func main() {
	statusURL := flag.String("url", envDefault("STATUS_URL", "http://127.0.0.1:8080/"), "Status endpoint URL")
	timeout := flag.Duration("timeout", envDuration("STATUS_TIMEOUT", 3*time.Second), "HTTP request timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := fetchStatus(ctx, *statusURL)
	if err != nil {
		log.Fatalf("fetch status: %v", err)
	}

	printStatus(resp, os.Stdout)
}

func fetchStatus(ctx context.Context, url string) (statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return statusResponse{}, fmt.Errorf("build request: %w", err)
	}

	client := &http.Client{}
	res, err := client.Do(req)
	if err != nil {
		return statusResponse{}, fmt.Errorf("request status: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return statusResponse{}, fmt.Errorf("unexpected status %s: %s", res.Status, strings.TrimSpace(string(body)))
	}

	var status statusResponse
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		return statusResponse{}, fmt.Errorf("decode response: %w", err)
	}

	return status, nil
}

func printStatus(resp statusResponse, w io.Writer) {
	if resp.ObservedAt.IsZero() {
		resp.ObservedAt = time.Now()
	}
	fmt.Fprintf(w, "Observed at: %s\n", resp.ObservedAt.Format(time.RFC3339))

	if resp.Input.Cycles == 0 {
		fmt.Fprintln(w, "No cycles observed yet.")
		return
	}

	fmt.Fprintln(w)

	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tCOMPONENT\tDETAILS")
	inputStatus, inputDetails := summarizeInput(resp.Input)
	fmt.Fprintf(tw, "%s\t%s\t%s\n", inputStatus, "input", inputDetails)
	cooldownStatus, cooldownDetails := summarizeCooldown(resp.Engine)
	fmt.Fprintf(tw, "%s\t%s\t%s\n", cooldownStatus, "cooldown", cooldownDetails)
	fmt.Fprintf(tw, "%s\t%s\t%s\n", "OK", "clock", fmt.Sprintf("frame %d, elapsed %s", resp.Engine.Frame, resp.Engine.Elapsed))
	fmt.Fprintf(tw, "%s\t%s\t%s\n", "OK", "peak accel", fmt.Sprintf("%.2f m/s^2", resp.Engine.PeakAcceleration))
	_ = tw.Flush()

	out := buf.String()
	if shouldColor(w) {
		out = colorizeStatuses(out)
	}
	fmt.Fprint(w, out)

	latched := "none"
	if len(resp.Engine.Latched) > 0 {
		latched = strings.Join(resp.Engine.Latched, ", ")
	}
	fmt.Fprintf(w, "\nLatched: %s\n", latched)
	fmt.Fprintf(w, "%d one-shot event(s) fired over %d cycle(s)\n", len(resp.Engine.Latched), resp.Input.Cycles)
}

func summarizeInput(s inputState) (string, string) {
	details := fmt.Sprintf("%d cycles from %s", s.Cycles, fallback(s.Source, "unknown"))
	if s.Dropped > 0 {
		details += fmt.Sprintf(", %d dropped", s.Dropped)
	}
	if s.Stale {
		return "STALE!", details + fmt.Sprintf(", idle %s", fallback(s.IdleFor, "-"))
	}
	return "OK", details
}

func summarizeCooldown(e engineState) (string, string) {
	if e.CooldownActive {
		return "QUIET", fmt.Sprintf("random events suppressed for %s", fallback(e.CooldownRemaining, "-"))
	}
	return "OK", "random events eligible"
}

func fallback(v, defaultVal string) string {
	if strings.TrimSpace(v) == "" {
		return defaultVal
	}
	return v
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

func shouldColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}

	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func applyColor(s string, colorize bool, code int) string {
	if !colorize {
		return s
	}
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", code, s)
}

func colorizeStatuses(out string) string {
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if line == "" || strings.HasPrefix(line, "STATUS") {
			continue
		}
		spaceIdx := strings.IndexByte(line, ' ')
		if spaceIdx <= 0 {
			continue
		}
		status := line[:spaceIdx]
		rest := line[spaceIdx:]

		switch status {
		case "STALE!":
			status = applyColor(status, true, 31)
		case "QUIET":
			status = applyColor(status, true, 33)
		case "OK":
			status = applyColor(status, true, 32)
		default:
			// leave as-is
		}
		lines[i] = status + rest
	}
	return strings.Join(lines, "\n")
}
