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

// Package sink forwards change events and tag values produced by pollers to
// the outside world: the log, an MQTT broker or a Kafka topic.
package sink

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kiwigrid/keta-sub001/pkg/logger"
	"github.com/kiwigrid/keta-sub001/pkg/models"
	"github.com/kiwigrid/keta-sub001/pkg/poller"
)

// TagValueKind is the kind segment used for tag value records.
const TagValueKind = "tagvalue"

type EventSink interface {
	PublishEvent(channel string, event models.ChangeEvent) error
}

type TagValueSink interface {
	PublishTagValue(channel string, value models.TagValue) error
}

// Sink accepts both change events and tag values.
type Sink interface {
	EventSink
	TagValueSink
	Close() error
}

// eventRecord is the wire form of a forwarded change event.
type eventRecord struct {
	Entity      models.Entity     `json:"entity"`
	Channel     string            `json:"channel"`
	Kind        models.ChangeKind `json:"kind"`
	TimestampMs int64             `json:"timestamp_ms"`
}

// tagValueRecord is the wire form of a forwarded tag value.
type tagValueRecord struct {
	Value       any    `json:"value"`
	Channel     string `json:"channel"`
	DeviceGUID  string `json:"deviceGuid"`
	Tag         string `json:"tag"`
	TimestampMs int64  `json:"timestamp_ms"`
}

func newEventRecord(channel string, event models.ChangeEvent) eventRecord {
	return eventRecord{
		Entity:      event.Entity(),
		Channel:     channel,
		Kind:        event.Kind(),
		TimestampMs: time.Now().UnixMilli(),
	}
}

func newTagValueRecord(channel string, value models.TagValue) tagValueRecord {
	return tagValueRecord{
		Value:       value.Value,
		Channel:     channel,
		DeviceGUID:  value.DeviceGUID,
		Tag:         value.Tag,
		TimestampMs: time.Now().UnixMilli(),
	}
}

// kindSegment renders a change kind as a topic segment.
func kindSegment(kind models.ChangeKind) string {
	return strings.ToLower(string(kind))
}

// ForwardEvents returns a poller consumer that publishes every change event to sink.
// Publish failures are logged and do not reach the poller.
func ForwardEvents(channel string, sink EventSink) poller.Consumer {
	log := logger.For(logger.ComponentSink).With("channel", channel)
	return func(event models.ChangeEvent) {
		if err := sink.PublishEvent(channel, event); err != nil {
			log.Warnf("Failed to forward %s event for %s: %v", event.Kind(), event.GUID(), err)
		}
	}
}

// ForwardTagValues returns a tag value consumer that publishes every value to sink.
func ForwardTagValues(channel string, sink TagValueSink) poller.TagValueConsumer {
	log := logger.For(logger.ComponentSink).With("channel", channel)
	return func(value models.TagValue) {
		if err := sink.PublishTagValue(channel, value); err != nil {
			log.Warnf("Failed to forward tag value %s of %s: %v", value.Tag, value.DeviceGUID, err)
		}
	}
}

// LogSink writes every record to a logger.
type LogSink struct {
	log *zap.SugaredLogger
}

var _ Sink = (*LogSink)(nil)

// NewLogSink creates a LogSink. A nil logger uses the sink component logger.
func NewLogSink(log *zap.SugaredLogger) *LogSink {
	if log == nil {
		log = logger.For(logger.ComponentSink)
	}
	return &LogSink{log: log}
}

func (s *LogSink) PublishEvent(channel string, event models.ChangeEvent) error {
	s.log.Infow("Device changed",
		"channel", channel,
		"kind", event.Kind(),
		"guid", event.GUID(),
		"entity", event.Entity(),
	)
	return nil
}

func (s *LogSink) PublishTagValue(channel string, value models.TagValue) error {
	s.log.Infow("Tag value",
		"channel", channel,
		"guid", value.DeviceGUID,
		"tag", value.Tag,
		"value", value.Value,
	)
	return nil
}

func (s *LogSink) Close() error {
	return nil
}
