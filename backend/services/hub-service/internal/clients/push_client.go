package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// PushClient delivers alert notifications to the push channel. Delivery is
// at-most-once; callers dispatch through the background worker and never
// depend on the outcome.
type PushClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewPushClient returns client wrapper. Empty baseURL disables the client.
func NewPushClient(baseURL string, logger *zap.Logger) *PushClient {
	return &PushClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}

type pushRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Severity string `json:"severity"`
}

// Send posts one notification.
func (c *PushClient) Send(ctx context.Context, title, body, severity string) error {
	if c.baseURL == "" {
		c.logger.Debug("push client disabled, skipping notification")
		return nil
	}
	data, err := json.Marshal(pushRequest{Title: title, Body: body, Severity: severity})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/notifications", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("push request failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.logger.Warn("push returned non-success", zap.Int("status", resp.StatusCode))
		return fmt.Errorf("push: unexpected status %d", resp.StatusCode)
	}
	return nil
}
