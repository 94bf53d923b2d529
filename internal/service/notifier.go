package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pathpay-backend/internal/logger"
)

// webhookNotifier posts user events to a delivery gateway which owns the
// actual push/SMS fan-out. Delivery is best effort; callers ignore the error.
type webhookNotifier struct {
	url        string
	httpClient *http.Client
}

func NewWebhookNotifier(url string) Notifier {
	return &webhookNotifier{
		url: url,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type notifyPayload struct {
	UserID  int64             `json:"user_id"`
	Event   string            `json:"event"`
	Payload map[string]string `json:"payload,omitempty"`
}

func (n *webhookNotifier) Notify(ctx context.Context, userID int64, event string, payload map[string]string) error {
	if n.url == "" {
		return nil
	}
	logger.ExternalServiceCall("notify-webhook", event, "user_id", userID)

	body, err := json.Marshal(notifyPayload{UserID: userID, Event: event, Payload: payload})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	logger.ExternalServiceResult("notify-webhook", event, err)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify webhook returned %d", resp.StatusCode)
	}
	return nil
}

// noopNotifier drops all events. Used when no webhook is configured.
type noopNotifier struct{}

func NewNoopNotifier() Notifier { return noopNotifier{} }

func (noopNotifier) Notify(ctx context.Context, userID int64, event string, payload map[string]string) error {
	return nil
}
