// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package http implements the bus over plain HTTP: every request is POSTed as
// JSON to <baseURL>/<channel> and the response body is decoded as the reply.
package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kiwigrid/keta-sub001/pkg/bus"
	"github.com/kiwigrid/keta-sub001/pkg/logger"
	"github.com/kiwigrid/keta-sub001/pkg/models"
)

// ErrStatus is wrapped by errors caused by a non 2xx HTTP status.
var ErrStatus = errors.New("unexpected http status")

type Bus struct {
	client  *http.Client
	log     *zap.SugaredLogger
	baseURL string
	mu      sync.RWMutex
	closed  bool
}

var _ bus.Requester = (*Bus)(nil)

// New creates an HTTP bus. timeout bounds every request in addition to the caller's context.
func New(baseURL string, timeout time.Duration) *Bus {
	// HTTP/2 disabled, same as the backend communicator
	transport := &http.Transport{
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
	}

	return &Bus{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		log:     logger.For(logger.ComponentHTTPBus),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// HTTPClient exposes the underlying client, mainly so tests can intercept it.
func (b *Bus) HTTPClient() *http.Client {
	return b.client
}

// Request implements bus.Requester.
func (b *Bus) Request(ctx context.Context, channel string, req models.Request) (reply models.Reply, responseErr error) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return models.Reply{}, bus.ErrClosed
	}

	body, err := json.Marshal(req)
	if err != nil {
		return models.Reply{}, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := b.baseURL + "/" + url.PathEscape(channel)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return models.Reply{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	response, err := b.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return models.Reply{}, fmt.Errorf("request to %s: %w", channel, bus.ContextError(ctx))
		}
		return models.Reply{}, enhanceConnectionError(err)
	}
	defer func() {
		if err := response.Body.Close(); err != nil {
			if responseErr != nil {
				b.log.Errorf("Error closing response body: %v", err)
			} else {
				responseErr = fmt.Errorf("error closing response body: %w", err)
			}
		}
	}()

	bodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return models.Reply{}, err
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return models.Reply{}, fmt.Errorf("%w: %s from %s", ErrStatus, response.Status, endpoint)
	}

	if err := json.Unmarshal(bodyBytes, &reply); err != nil {
		return models.Reply{}, fmt.Errorf("failed to decode reply from %s: %w", endpoint, err)
	}
	return reply, nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.client.CloseIdleConnections()
	return nil
}

// enhanceConnectionError adds detailed context to common connection errors
func enhanceConnectionError(err error) error {
	switch {
	case strings.Contains(err.Error(), "EOF"):
		return fmt.Errorf("connection closed unexpectedly before receiving response: %w", err)
	case strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "deadline exceeded"):
		return fmt.Errorf("request timed out: %w: %w", bus.ErrTimeout, err)
	case strings.Contains(err.Error(), "connection refused"):
		return fmt.Errorf("connection refused: %w: %w", bus.ErrNotConnected, err)
	}
	return fmt.Errorf("connection error: %w", err)
}
