package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RendererClient delegates HTML-to-PDF conversion to the headless-browser
// render service. Every render is bounded by the configured timeout; the
// response body is always drained and closed so a slow render cannot leak
// the connection.
type RendererClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

type renderRequest struct {
	HTML     string `json:"html"`
	FileName string `json:"file_name"`
}

// NewRendererClient creates a renderer client. timeout bounds the full
// render round trip including page load and PDF export.
func NewRendererClient(baseURL string, timeout time.Duration) *RendererClient {
	return &RendererClient{
		baseURL: baseURL,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// RenderPDF converts HTML to PDF bytes. A timeout is fatal for this render
// call; the caller surfaces a user-facing failure rather than retrying.
func (c *RendererClient) RenderPDF(ctx context.Context, html, fileName string) ([]byte, error) {
	defer observeVendor("renderer", "render_pdf", time.Now())
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqBody, err := json.Marshal(renderRequest{HTML: html, FileName: fileName})
	if err != nil {
		return nil, fmt.Errorf("marshal render request: %w", err)
	}

	url := c.baseURL + "/render/pdf"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, URL: url, Body: string(body)}
	}

	pdf, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, fmt.Errorf("read pdf body: %w", err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("renderer returned empty document")
	}
	return pdf, nil
}
