package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quic-go/quic-go/http3"

	"github.com/orizon-lang/exprrepr/internal/codec"
	"github.com/orizon-lang/exprrepr/internal/repr"
)

// StatusError is returned by Client.Eval for non-200 responses.
type StatusError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote eval: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("remote eval: %d: %s", e.StatusCode, e.Message)
}

// Client posts lambdas to an evaluation server.
type Client struct {
	base  string
	http  *http.Client
	codec *codec.Codec
}

// NewClient creates a client for base, e.g. "https://127.0.0.1:4433". A nil
// hc uses an HTTP/3 client without a timeout.
func NewClient(base string, hc *http.Client, c *codec.Codec) *Client {
	if hc == nil {
		hc = HTTP3Client(nil, 0)
	}
	if c == nil {
		c = codec.New(nil)
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc, codec: c}
}

// HTTP3Client returns an http.Client using an HTTP/3 round tripper.
func HTTP3Client(tlsCfg *tls.Config, timeout time.Duration) *http.Client {
	return &http.Client{Transport: &http3.Transport{TLSClientConfig: tlsCfg}, Timeout: timeout}
}

// Close releases the HTTP/3 transport, if any.
func (c *Client) Close() error {
	if tr, ok := c.http.Transport.(*http3.Transport); ok {
		return tr.Close()
	}
	return nil
}

// Eval encodes lambda and args, evaluates them remotely and decodes the
// result into out when out is non-nil.
func (c *Client) Eval(ctx context.Context, lambda repr.Node, out any, args ...any) error {
	env, err := c.codec.Marshal(lambda)
	if err != nil {
		return err
	}
	req := EvalRequest{Lambda: env, Args: make([]json.RawMessage, len(args))}
	for i, a := range args {
		if req.Args[i], err = json.Marshal(a); err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+EvalPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	hreq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(hreq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var er EvalResponse
	if err := json.Unmarshal(data, &er); err != nil {
		return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Message: er.Error, Code: er.Code}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(er.Result, out)
}
