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

// Package bus defines the request/reply transport the device pollers query
// remote device collections through. Implementations live in the memory, http
// and mqtt subpackages.
package bus

import (
	"context"
	"errors"

	"github.com/kiwigrid/keta-sub001/pkg/models"
)

var (
	// ErrTimeout is returned when no reply arrived before the request context expired.
	ErrTimeout = errors.New("bus request timed out")
	// ErrNotConnected is returned when the underlying transport is not connected.
	ErrNotConnected = errors.New("bus not connected")
	// ErrClosed is returned for requests issued after Close.
	ErrClosed = errors.New("bus closed")
)

// Requester sends a request to a named channel and blocks until the reply arrives,
// the context is done, or the transport fails.
type Requester interface {
	Request(ctx context.Context, channel string, req models.Request) (models.Reply, error)
}

// Closer is implemented by requesters that hold a connection.
type Closer interface {
	Close() error
}

// ContextError maps a finished context to the matching bus sentinel.
func ContextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}
