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

package poller

import (
	"context"
	"sync"
	"time"
)

// Status is a point in time view of a running poller.
type Status struct {
	LastTick  time.Time
	LastError error
	Channel   string

	// Ticks counts interval ticks, successful or not. The seeding fetch is not a tick.
	Ticks uint64

	// Fingerprint identifies the content of the stored previous snapshot.
	Fingerprint uint64

	// Seeded is true once a snapshot has been stored as previous, either by the seeding fetch or by a tick.
	Seeded bool
}

// Handle controls one running poller.
type Handle struct {
	cancel  context.CancelFunc
	done    chan struct{}
	channel string
	status  Status
	mu      sync.RWMutex
}

func newHandle(channel string, cancel context.CancelFunc) *Handle {
	return &Handle{
		cancel:  cancel,
		done:    make(chan struct{}),
		channel: channel,
		status:  Status{Channel: channel},
	}
}

// Stop cancels the poller. It does not wait for the poll goroutine; use Done for that.
// A fetch in flight is abandoned and its result is never emitted. Stop is idempotent.
func (h *Handle) Stop() {
	h.cancel()
}

// Done is closed once the poll goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) Channel() string {
	return h.channel
}

func (h *Handle) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

func (h *Handle) recordTick(at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status.Ticks++
	h.status.LastTick = at
}

func (h *Handle) recordFetchError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status.LastError = err
}

func (h *Handle) recordSnapshot(fingerprint uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status.LastError = nil
	h.status.Fingerprint = fingerprint
	h.status.Seeded = true
}
