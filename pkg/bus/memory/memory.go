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

// Package memory implements an in-process bus. Handlers are registered per
// channel and action and are invoked synchronously on the requesting goroutine.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kiwigrid/keta-sub001/pkg/bus"
	"github.com/kiwigrid/keta-sub001/pkg/models"
)

var ErrNoHandler = errors.New("no handler registered")

// HandlerFunc answers one request. Returning an error simulates a transport failure.
type HandlerFunc func(ctx context.Context, params models.QueryParameters) (models.Reply, error)

type handlerKey struct {
	channel string
	action  string
}

type Bus struct {
	handlers map[handlerKey]HandlerFunc
	requests map[handlerKey]int
	mu       sync.RWMutex
	closed   bool
}

var _ bus.Requester = (*Bus)(nil)

func New() *Bus {
	return &Bus{
		handlers: make(map[handlerKey]HandlerFunc),
		requests: make(map[handlerKey]int),
	}
}

// Handle registers handler for the given channel and action, replacing any previous one.
func (b *Bus) Handle(channel, action string, handler HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[handlerKey{channel: channel, action: action}] = handler
}

// Request implements bus.Requester.
func (b *Bus) Request(ctx context.Context, channel string, req models.Request) (models.Reply, error) {
	key := handlerKey{channel: channel, action: req.Action}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return models.Reply{}, bus.ErrClosed
	}
	handler, ok := b.handlers[key]
	b.requests[key]++
	b.mu.Unlock()

	if !ok {
		return models.Reply{}, fmt.Errorf("%w for channel %q action %q", ErrNoHandler, channel, req.Action)
	}
	if ctx.Err() != nil {
		return models.Reply{}, bus.ContextError(ctx)
	}
	return handler(ctx, req.Params)
}

// Requests returns how many requests were issued for the channel and action.
func (b *Bus) Requests(channel, action string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.requests[handlerKey{channel: channel, action: action}]
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
