package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/venkytv/drive-events/pkg/cycle"
)

type recorder struct {
	got []cycle.Emission
	err error
}

func (r *recorder) Emit(_ context.Context, em cycle.Emission) error {
	r.got = append(r.got, em)
	return r.err
}

func TestMultiFansOutAndJoinsErrors(t *testing.T) {
	ok := &recorder{}
	bad := &recorder{err: errors.New("boom")}
	em := cycle.Emission{Frame: 7, Events: []string{"greenLight"}}

	err := Multi{ok, bad, Nop{}}.Emit(context.Background(), em)
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected joined boom error, got %v", err)
	}
	if len(ok.got) != 1 || len(bad.got) != 1 {
		t.Fatalf("expected every notifier to receive the emission")
	}
}

func TestWebhookPostsJSON(t *testing.T) {
	var got cycle.Emission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	em := cycle.Emission{Frame: 3, Elapsed: 150 * time.Millisecond, Events: []string{"trafficModeActive"}}
	if err := (Webhook{Endpoint: srv.URL}).Emit(context.Background(), em); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if got.Frame != 3 || len(got.Events) != 1 || got.Events[0] != "trafficModeActive" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestWebhookReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := (Webhook{Endpoint: srv.URL}).Emit(context.Background(), cycle.Emission{}); err == nil {
		t.Fatalf("expected error for 502")
	}
}

func TestWebhookRequiresEndpoint(t *testing.T) {
	if err := (Webhook{}).Emit(context.Background(), cycle.Emission{}); err == nil {
		t.Fatalf("expected error without endpoint")
	}
}

func TestNATSRequiresConn(t *testing.T) {
	if err := (NATS{Subject: "drive.events"}).Emit(context.Background(), cycle.Emission{}); err == nil {
		t.Fatalf("expected error without connection")
	}
}
