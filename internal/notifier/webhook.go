package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/venkytv/drive-events/pkg/cycle"
)

// Webhook posts emissions as JSON to an HTTP endpoint.
type Webhook struct {
	Endpoint string
	Client   *http.Client
}

func (w Webhook) client() *http.Client {
	if w.Client != nil {
		return w.Client
	}
	return &http.Client{Timeout: 2 * time.Second}
}

func (w Webhook) Emit(ctx context.Context, em cycle.Emission) error {
	if w.Endpoint == "" {
		return errors.New("webhook endpoint is required")
	}
	payload, err := em.Marshal()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %s", resp.Status)
	}
	return nil
}
