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

// Package poller periodically fetches device collections over the bus and
// reports the differences between consecutive fetches as change events.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"

	"github.com/kiwigrid/keta-sub001/pkg/bus"
	"github.com/kiwigrid/keta-sub001/pkg/constants"
	"github.com/kiwigrid/keta-sub001/pkg/logger"
	"github.com/kiwigrid/keta-sub001/pkg/metrics"
	"github.com/kiwigrid/keta-sub001/pkg/models"
	"github.com/kiwigrid/keta-sub001/pkg/sentry"
	"github.com/kiwigrid/keta-sub001/pkg/snapshotdiff"
)

// ErrInvalidReply is wrapped by fetch errors caused by a reply that did not carry a device collection.
var ErrInvalidReply = errors.New("invalid reply")

// Consumer receives change events. It is called synchronously from the poll
// goroutine, once per event and in diff order.
type Consumer func(event models.ChangeEvent)

// DevicePoller runs periodic fetch and diff cycles against a bus.
type DevicePoller struct {
	requester bus.Requester
	clock     clock.Clock
	log       *zap.SugaredLogger
}

// NewDevicePoller creates a poller. A nil clock means wall clock time.
func NewDevicePoller(requester bus.Requester, clk clock.Clock) *DevicePoller {
	if clk == nil {
		clk = clock.WallClock
	}
	return &DevicePoller{
		requester: requester,
		clock:     clk,
		log:       logger.For(logger.ComponentPoller),
	}
}

// Start begins polling channel and returns immediately. The poll goroutine
// first seeds the previous snapshot without emitting anything, then on every
// interval fetches, diffs against the previous snapshot and hands each change
// to consumer. A non-positive interval falls back to the default.
//
// Ticks never overlap: a tick whose fetch outlasts the interval delays the next one.
func (p *DevicePoller) Start(channel string, params models.QueryParameters, consumer Consumer, interval time.Duration) *Handle {
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	handle := newHandle(channel, cancel)

	go p.run(ctx, handle, params, consumer, interval)

	return handle
}

func (p *DevicePoller) run(ctx context.Context, handle *Handle, params models.QueryParameters, consumer Consumer, interval time.Duration) {
	defer close(handle.done)

	channel := handle.channel
	log := p.log.With("channel", channel)

	// nil until a snapshot was stored, diffed as empty
	var previous models.Snapshot

	seed, err := p.fetch(ctx, channel, params, interval)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Warnf("Seeding fetch failed, first tick reports every device as created: %v", err)
		handle.recordFetchError(err)
	} else {
		previous = seed
		p.storeFingerprint(log, handle, seed)
		log.Debugf("Seeded with %d devices", len(seed))
	}

	next := p.clock.Now().Add(interval)
	for {
		if wait := next.Sub(p.clock.Now()); wait > 0 {
			select {
			case <-ctx.Done():
				log.Debug("Polling stopped")
				return
			case <-p.clock.After(wait):
			}
		} else if ctx.Err() != nil {
			return
		}

		started := p.clock.Now()
		handle.recordTick(started)
		if current, stored := p.tick(ctx, log, handle, params, consumer, previous, interval); stored {
			previous = current
		}

		next = next.Add(interval)
		if now := p.clock.Now(); !now.Before(next) {
			log.Warnf("Tick took %s, longer than the poll interval of %s", now.Sub(started), interval)
			metrics.RecordTickOverrun(channel)
			next = now.Add(interval)
		}
	}
}

// tick runs one fetch, diff and emit cycle. It returns the snapshot to keep as
// previous and whether it should replace the current one.
func (p *DevicePoller) tick(ctx context.Context, log *zap.SugaredLogger, handle *Handle, params models.QueryParameters, consumer Consumer, previous models.Snapshot, interval time.Duration) (models.Snapshot, bool) {
	channel := handle.channel

	current, err := p.fetch(ctx, channel, params, interval)
	if ctx.Err() != nil {
		log.Debug("Polling stopped during fetch, discarding result")
		return nil, false
	}
	if err != nil {
		log.Warnf("Skipping tick: %v", err)
		handle.recordFetchError(err)
		return nil, false
	}

	emitted := 0
	for event := range snapshotdiff.Diff(previous, current) {
		p.deliver(log, channel, consumer, event)
		emitted++
	}
	if emitted > 0 {
		log.Infof("Emitted %d change events for %d devices", emitted, len(current))
	}

	p.storeFingerprint(log, handle, current)
	return current, true
}

// fetch requests the device collection and decides, once, whether the reply is usable.
// The returned snapshot is sorted by identity.
func (p *DevicePoller) fetch(ctx context.Context, channel string, params models.QueryParameters, timeout time.Duration) (models.Snapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	reply, err := p.requester.Request(fetchCtx, channel, models.Request{
		Action: constants.GetDevicesAction,
		Params: params,
	})
	duration := time.Since(start)

	if err != nil {
		metrics.RecordFetch(channel, metrics.FetchResultError, duration)
		return nil, fmt.Errorf("fetch from %s failed: %w", channel, err)
	}

	result := models.ResultFromReply(reply)
	items, ok := result.Items()
	if !ok {
		metrics.RecordFetch(channel, metrics.FetchResultInvalid, duration)
		return nil, fmt.Errorf("%w from %s: %s", ErrInvalidReply, channel, result.Reason())
	}

	metrics.RecordFetch(channel, metrics.FetchResultOK, duration)
	return items.Sorted(), nil
}

// deliver hands a private copy of event to consumer and contains its panics.
func (p *DevicePoller) deliver(log *zap.SugaredLogger, channel string, consumer Consumer, event models.ChangeEvent) {
	metrics.RecordChangeEvent(channel, string(event.Kind()))

	guard(log, channel, func() {
		consumer(isolate(log, event))
	})
}

func (p *DevicePoller) storeFingerprint(log *zap.SugaredLogger, handle *Handle, snapshot models.Snapshot) {
	fingerprint, err := snapshotdiff.Fingerprint(snapshot)
	if err != nil {
		log.Debugf("Failed to fingerprint snapshot: %v", err)
	} else {
		log.Debugf("Snapshot of %d devices has fingerprint %016x", len(snapshot), fingerprint)
	}
	handle.recordSnapshot(fingerprint)
}

// isolate deep copies the event's entity so consumers cannot alter poller state.
func isolate(log *zap.SugaredLogger, event models.ChangeEvent) models.ChangeEvent {
	var entity models.Entity
	if err := deepcopy.Copy(&entity, event.Entity()); err != nil {
		log.Warnf("Failed to copy %s event for %s, delivering shared entity: %v", event.Kind(), event.GUID(), err)
		return event
	}
	return models.NewChangeEvent(event.Kind(), entity)
}

// guard runs fn and reports a panic instead of propagating it.
func guard(log *zap.SugaredLogger, channel string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordConsumerPanic(channel)
			sentry.ReportPollerError(log, channel, "consume", fmt.Errorf("consumer panicked: %v", r))
		}
	}()
	fn()
}
