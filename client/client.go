// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package client is a Go client of the playlist recommendation REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/juju/errors"
)

const DefaultEndpoint = "http://127.0.0.1:5000"

type Client struct {
	endpoint   string
	httpClient http.Client
	maxTries   uint
}

// NewClient creates a client. The endpoint is the server root, a trailing
// /api/recommend is accepted and removed.
func NewClient(endpoint string, timeout time.Duration) *Client {
	endpoint = strings.TrimSuffix(endpoint, "/")
	endpoint = strings.TrimSuffix(endpoint, "/api/recommend")
	return &Client{
		endpoint:   endpoint,
		httpClient: http.Client{Timeout: timeout},
		maxTries:   3,
	}
}

// SetMaxTries sets how many times a request is sent when the server is unreachable.
func (c *Client) SetMaxTries(n uint) {
	c.maxTries = max(n, 1)
}

func (c *Client) Recommend(ctx context.Context, songs []string, n int) (*RecommendResponse, error) {
	var result RecommendResponse
	if err := c.do(ctx, http.MethodPost, "/api/recommend", RecommendRequest{Songs: songs, N: n}, &result); err != nil {
		return nil, errors.Trace(err)
	}
	return &result, nil
}

// Health returns the health of the server. An unhealthy server is not an error.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var result Health
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &result, http.StatusServiceUnavailable); err != nil {
		return nil, errors.Trace(err)
	}
	return &result, nil
}

func (c *Client) Model(ctx context.Context) (*ModelInfo, error) {
	var result ModelInfo
	if err := c.do(ctx, http.MethodGet, "/api/model", nil, &result); err != nil {
		return nil, errors.Trace(err)
	}
	return &result, nil
}

func (c *Client) Reload(ctx context.Context) (*ReloadResponse, error) {
	var result ReloadResponse
	if err := c.do(ctx, http.MethodPost, "/api/admin/reload", nil, &result); err != nil {
		return nil, errors.Trace(err)
	}
	return &result, nil
}

// do sends a request and decodes the response into result. Connection failures and
// gateway errors are retried, other failures are returned at once.
func (c *Client) do(ctx context.Context, method, path string, body, result any, accept ...int) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Trace(err)
		}
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, bytes.NewReader(payload))
		if err != nil {
			return struct{}{}, backoff.Permanent(errors.Trace(err))
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return struct{}{}, errors.Trace(err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return struct{}{}, errors.Trace(err)
		}
		if resp.StatusCode != http.StatusOK && !slices.Contains(accept, resp.StatusCode) {
			apiErr := newError(resp.StatusCode, data)
			switch resp.StatusCode {
			case http.StatusBadGateway, http.StatusGatewayTimeout:
				return struct{}{}, apiErr
			}
			return struct{}{}, backoff.Permanent(apiErr)
		}
		if err = json.Unmarshal(data, result); err != nil {
			return struct{}{}, backoff.Permanent(errors.Annotate(err, "invalid response"))
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(c.maxTries))
	return err
}

func newError(statusCode int, body []byte) *Error {
	var message struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &message); err != nil || message.Message == "" {
		message.Message = strings.TrimSpace(string(body))
	}
	return &Error{StatusCode: statusCode, Message: message.Message}
}
