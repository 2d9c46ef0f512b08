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

package sink

import (
	"errors"
	"fmt"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"

	"github.com/kiwigrid/keta-sub001/pkg/constants"
	"github.com/kiwigrid/keta-sub001/pkg/models"
)

var ErrPublishTimeout = errors.New("publish timed out")

// MQTTSink publishes records to <prefix>/<channel>/<kind>.
type MQTTSink struct {
	client  MQTT.Client
	prefix  string
	timeout time.Duration
	qos     byte
}

var _ Sink = (*MQTTSink)(nil)

// NewMQTTSink publishes through an already connected client. The client is not
// closed by the sink.
func NewMQTTSink(client MQTT.Client, prefix string) *MQTTSink {
	return &MQTTSink{
		client:  client,
		prefix:  prefix,
		timeout: constants.DefaultRequestTimeout,
		qos:     constants.DefaultMQTTQoS,
	}
}

// Topic returns the topic records of kind on channel are published to.
func (s *MQTTSink) Topic(channel, kind string) string {
	return fmt.Sprintf("%s/%s/%s", s.prefix, channel, kind)
}

func (s *MQTTSink) PublishEvent(channel string, event models.ChangeEvent) error {
	payload, err := json.Marshal(newEventRecord(channel, event))
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return s.publish(s.Topic(channel, kindSegment(event.Kind())), payload)
}

func (s *MQTTSink) PublishTagValue(channel string, value models.TagValue) error {
	payload, err := json.Marshal(newTagValueRecord(channel, value))
	if err != nil {
		return fmt.Errorf("failed to encode tag value: %w", err)
	}
	return s.publish(s.Topic(channel, TagValueKind), payload)
}

func (s *MQTTSink) publish(topic string, payload []byte) error {
	token := s.client.Publish(topic, s.qos, false, payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	return token.Error()
}

func (s *MQTTSink) Close() error {
	return nil
}
