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

package poller_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"

	"github.com/kiwigrid/keta-sub001/pkg/bus/memory"
	"github.com/kiwigrid/keta-sub001/pkg/models"
)

const testChannel = "site-a"

type response struct {
	reply models.Reply
	err   error
}

// collection is a remote device collection whose answers are fed by the test.
// Every request blocks until the test supplies a response.
type collection struct {
	responses chan response
	released  chan struct{}
}

func newCollection(b *memory.Bus) *collection {
	c := &collection{
		responses: make(chan response, 16),
		released:  make(chan struct{}),
	}
	b.Handle(testChannel, "getDevices", c.handle)
	DeferCleanup(func() { close(c.released) })
	return c
}

func (c *collection) handle(_ context.Context, _ models.QueryParameters) (models.Reply, error) {
	select {
	case r := <-c.responses:
		return r.reply, r.err
	case <-c.released:
		return models.Reply{}, errors.New("collection released")
	}
}

func (c *collection) answer(items ...models.Entity) {
	c.responses <- response{reply: models.NewOKReply(models.Snapshot(items))}
}

func (c *collection) answerCode(code int) {
	c.responses <- response{reply: models.Reply{Code: code}}
}

func (c *collection) fail(err error) {
	c.responses <- response{err: err}
}

type recorder struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (r *recorder) consume(event models.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// summary renders the recorded events as KIND:guid.
func (r *recorder) summary() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, fmt.Sprintf("%s:%s", event.Kind(), event.GUID()))
	}
	return out
}

func (r *recorder) last() models.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func device(guid string, fields ...any) models.Entity {
	e := models.Entity{"guid": guid}
	for i := 0; i+1 < len(fields); i += 2 {
		e[fields[i].(string)] = fields[i+1]
	}
	return e
}
