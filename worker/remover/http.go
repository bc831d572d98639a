package remover

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// HTTP posts the image to an inference endpoint and expects the PNG cutout in the
// response body. Requests carry no deadline of their own; the caller's context is the only bound.
type HTTP struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

func NewHTTP(endpoint string, client *http.Client, logger *zap.Logger) *HTTP {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTP{endpoint: endpoint, client: client, logger: logger}
}

func (h *HTTP) Remove(ctx context.Context, src []byte, cfg Config) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	u, err := url.Parse(h.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if cfg.Device != "" {
		q := u.Query()
		q.Set("device", cfg.Device)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(src))
	req.Header.Set("Accept", "image/png")

	cfg.report(0)
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call inference endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		h.logger.Warn("Inference endpoint rejected image",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", msg),
		)
		return nil, fmt.Errorf("inference endpoint returned %d", resp.StatusCode)
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read inference response: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrEmptyOutput
	}
	cfg.report(100)

	return out, nil
}
