package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ayusman/retailsight/internal/tracking"
)

// DefaultHTTPTimeout bounds a single webhook call.
const DefaultHTTPTimeout = 5 * time.Second

// EntryPayload is the JSON body posted for every entry. customer_Id carries
// the new running total.
type EntryPayload struct {
	CustomerID int       `json:"customer_Id"`
	IdentityID int       `json:"identity_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// HTTPSink posts entry events to a webhook URL.
type HTTPSink struct {
	url    string
	client *http.Client
}

// NewHTTPSink creates a sink posting to url. A nil client uses one with
// DefaultHTTPTimeout.
func NewHTTPSink(url string, client *http.Client) *HTTPSink {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &HTTPSink{url: url, client: client}
}

// Publish posts the event. Any non-2xx status is an error.
func (s *HTTPSink) Publish(ctx context.Context, ev tracking.CrossingEvent) error {
	body, err := json.Marshal(EntryPayload{
		CustomerID: ev.Total,
		IdentityID: ev.IdentityID,
		Timestamp:  ev.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post %s: status %d: %s", s.url, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
