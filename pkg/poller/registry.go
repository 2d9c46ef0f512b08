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
	"sync"

	"github.com/kiwigrid/keta-sub001/pkg/metrics"
)

// Registry records running poll handles so they can be stopped together.
// Handles are only ever removed all at once.
type Registry struct {
	handles []*Handle
	mu      sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add records a handle.
func (r *Registry) Add(handle *Handle) {
	if handle == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handles = append(r.handles, handle)
	metrics.SetActivePollers(len(r.handles))
}

// StopAndRemoveAll stops every recorded handle and empties the registry.
// Calling it on an empty registry does nothing.
func (r *Registry) StopAndRemoveAll() {
	// Stop outside the lock so a consumer that registers a poller while being stopped cannot deadlock
	r.mu.Lock()
	handles := r.handles
	r.handles = nil
	metrics.SetActivePollers(0)
	r.mu.Unlock()

	for _, handle := range handles {
		handle.Stop()
	}
}

// Len returns the number of recorded handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
