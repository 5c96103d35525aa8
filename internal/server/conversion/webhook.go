package conversion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/photoai/internal/common"
)

// Poster delivers a single event.
type Poster interface {
	Post(ctx context.Context, e Event) error
}

// Webhook posts events as JSON to a fixed URL. A Webhook with an empty URL
// accepts and discards everything.
type Webhook struct {
	httpClient      *http.Client
	url             string
	defaultCurrency string
}

func NewWebhook(url string, timeout time.Duration, defaultCurrency string) *Webhook {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{
		httpClient:      &http.Client{Timeout: timeout},
		url:             strings.TrimSpace(url),
		defaultCurrency: defaultCurrency,
	}
}

func (w *Webhook) Enabled() bool { return w.url != "" }

func (w *Webhook) Post(ctx context.Context, e Event) error {
	if !w.Enabled() {
		return nil
	}

	b, err := json.Marshal(BuildPayload(e, w.defaultCurrency))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrWebhookDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: status %d", common.ErrWebhookDeliveryFailed, resp.StatusCode)
	}
	return nil
}
