// Package viz posts board renders and notices to the viewer service the
// operator watches during a session.
package viz

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

const boardStream = "chessboard"

type Client struct {
	baseURL string
	http    *fasthttp.Client
	timeout time.Duration
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &fasthttp.Client{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second, MaxConnsPerHost: 4},
		timeout: 5 * time.Second,
	}
}

type logImageRequest struct {
	Stream string `json:"stream"`
	Data   string `json:"data"` // base64 PNG
}

type logTextRequest struct {
	Stream string `json:"stream"`
	Text   string `json:"text"`
}

// ShowImage logs a board PNG to the viewer's chessboard stream.
func (c *Client) ShowImage(ctx context.Context, png []byte) error {
	req := logImageRequest{Stream: boardStream, Data: base64.StdEncoding.EncodeToString(png)}
	return c.post(ctx, "/log/image", req)
}

// ShowText logs a caption to the viewer's chessboard stream.
func (c *Client) ShowText(ctx context.Context, text string) error {
	return c.post(ctx, "/log/text", logTextRequest{Stream: boardStream, Text: text})
}

func (c *Client) post(ctx context.Context, path string, in any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("viewer request %s: %w", path, err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return fmt.Errorf("viewer api %s: status=%d", path, status)
	}
	return nil
}
