package compose

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"idmerge/internal/recognize"
)

// HTTPCompositor calls a remote composition service with a JSON body and
// reads back the artifact bytes.
type HTTPCompositor struct {
	url    string
	client *http.Client
	log    *slog.Logger
}

func NewHTTPCompositor(url string, timeout time.Duration, logger *slog.Logger) *HTTPCompositor {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &HTTPCompositor{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    logger,
	}
}

type composeBody struct {
	FrontImage string                 `json:"front_image"`
	BackImage  string                 `json:"back_image"`
	Fields     *recognize.FrontFields `json:"fields,omitempty"`
}

func (c *HTTPCompositor) Compose(ctx context.Context, req Request) ([]byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	body := composeBody{
		FrontImage: base64.StdEncoding.EncodeToString(req.FrontImage),
		BackImage:  base64.StdEncoding.EncodeToString(req.BackImage),
		Fields:     req.Fields,
	}
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode compose request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("build compose request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.log.Info("compose.http.request", "req_id", rid, "url", c.url, "content_length", len(bs))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.log.Error("compose.http.send_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("compose call: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Warn("compose.http.response_body_close_error", "req_id", rid, "error", cerr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read compose response: %w", err)
	}

	c.log.Info("compose.http.response", "req_id", rid, "status", resp.StatusCode,
		"bytes", len(raw), "elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("compositor returned status %d", resp.StatusCode)
	}
	var out struct {
		Artifact string `json:"artifact"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode compose response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("compositor: %s", out.Error)
	}
	artifact, err := base64.StdEncoding.DecodeString(out.Artifact)
	if err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if len(artifact) == 0 {
		return nil, fmt.Errorf("compositor returned empty artifact")
	}
	return artifact, nil
}
