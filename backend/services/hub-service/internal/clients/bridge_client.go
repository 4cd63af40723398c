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

// BridgeClient mirrors alert state to the external bridge as contact-sensor
// devices: OPEN while an alert is active, CLOSED once acknowledged.
type BridgeClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewBridgeClient returns client wrapper. Empty baseURL disables the client.
func NewBridgeClient(baseURL string, logger *zap.Logger) *BridgeClient {
	return &BridgeClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}

type registerDeviceRequest struct {
	DeviceID   string `json:"device_id"`
	Name       string `json:"name"`
	DeviceType string `json:"device_type"`
}

type contactStateRequest struct {
	DeviceID string `json:"device_id"`
	Open     bool   `json:"open"`
}

// RegisterContact announces a contact-sensor device to the bridge. Safe to
// repeat; the bridge upserts by device id.
func (c *BridgeClient) RegisterContact(ctx context.Context, deviceID, name string) error {
	if c.baseURL == "" {
		c.logger.Debug("bridge client disabled, skipping register")
		return nil
	}
	return c.post(ctx, "/devices", registerDeviceRequest{
		DeviceID:   deviceID,
		Name:       name,
		DeviceType: "contact",
	})
}

// SetContactState sets the open/closed state of a contact-sensor device.
func (c *BridgeClient) SetContactState(ctx context.Context, deviceID string, open bool) error {
	if c.baseURL == "" {
		c.logger.Debug("bridge client disabled, skipping contact state")
		return nil
	}
	return c.post(ctx, "/devices/state", contactStateRequest{
		DeviceID: deviceID,
		Open:     open,
	})
}

func (c *BridgeClient) post(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("bridge request failed", zap.String("path", path), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.logger.Warn("bridge returned non-success", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("bridge: unexpected status %d", resp.StatusCode)
	}
	return nil
}
