// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package publish

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// HTTP client defaults
const (
	DefaultTimeout = 30 * time.Second
	MaxResponseLen = 10 * 1024
	UserAgent      = "ocms-pipeline/1.0"
)

// Request headers
const (
	HeaderSignature      = "X-Pipeline-Signature"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// HTTPClientOptions configures an HTTPClient.
type HTTPClientOptions struct {
	Timeout time.Duration
	// AllowPrivateNetworks disables the private address guard. Only for
	// endpoints on the local network and for tests.
	AllowPrivateNetworks bool
}

// HTTPClient posts JSON to the configured endpoint.
type HTTPClient struct {
	http *http.Client
}

// NewHTTPClient creates a publishing client.
func NewHTTPClient(opts HTTPClientOptions) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext:         dialer.DialContext,
	}
	if !opts.AllowPrivateNetworks {
		transport.DialContext = SafeDialContext(dialer)
	}
	return &HTTPClient{
		http: &http.Client{Timeout: opts.Timeout, Transport: transport},
	}
}

type publishResponse struct {
	ID       string `json:"id"`
	RemoteID string `json:"remote_id"`
	URL      string `json:"url"`
}

// Publish sends post to target. A 2xx response must carry the remote id.
func (c *HTTPClient) Publish(ctx context.Context, post Post, target Target) (*Receipt, error) {
	if strings.TrimSpace(target.EndpointURL) == "" {
		return nil, &Error{Err: errors.New("endpoint URL is empty")}
	}

	payload, err := json.Marshal(post)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("encoding post: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.EndpointURL, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set(HeaderIdempotencyKey, post.IdeaID)
	if target.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+target.APIKey)
		req.Header.Set(HeaderSignature, Sign(payload, target.APIKey))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("request failed: %w", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseLen))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        errors.New(http.StatusText(resp.StatusCode)),
			Retryable:  retryableStatus(resp.StatusCode),
		}
	}

	var out publishResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Body: string(body), Err: fmt.Errorf("decoding response: %w", err)}
	}
	ref := out.ID
	if ref == "" {
		ref = out.RemoteID
	}
	if ref == "" {
		return nil, &Error{StatusCode: resp.StatusCode, Body: string(body), Err: errors.New("response has no post id")}
	}

	return &Receipt{Ref: ref, URL: out.URL}, nil
}

// Sign returns the hex HMAC-SHA256 of payload keyed by secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature produced by Sign.
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(signature), []byte(Sign(payload, secret)))
}
