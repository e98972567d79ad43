package broadcast

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/damoang/angple-messenger/internal/config"
	"github.com/samber/lo"
)

// SignatureHeader carries hex(HMAC-SHA256(secret, body))
const SignatureHeader = "X-Signature"

// httpPayload body posted to the relay
type httpPayload struct {
	Event     string                 `json:"event"`
	Channels  []Channel              `json:"channels"`
	Data      map[string]interface{} `json:"data"`
	Ephemeral bool                   `json:"ephemeral,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// HTTPDriver posts each event to a relay endpoint
type HTTPDriver struct {
	url        string
	secret     string
	httpClient *http.Client
}

// NewHTTPDriver 생성자
func NewHTTPDriver(cfg config.HTTPRelayConfig) *HTTPDriver {
	return &HTTPDriver{
		url:        cfg.URL,
		secret:     cfg.Secret,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (d *HTTPDriver) Name() string { return "http" }

// Sign computes the signature header value for body
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (d *HTTPDriver) Broadcast(ctx context.Context, ev Event) error {
	body, err := json.Marshal(httpPayload{
		Event:     ev.Name,
		Channels:  lo.UniqBy(ev.Channels, func(ch Channel) string { return string(ch.Class) + ":" + ch.Name }),
		Data:      ev.Payload,
		Ephemeral: ev.Ephemeral,
		Timestamp: ev.OccurredAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encoding %s: %w", ev.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.secret != "" {
		req.Header.Set(SignatureHeader, Sign(d.secret, body))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("relay responded %d", resp.StatusCode)
	}
	return nil
}
