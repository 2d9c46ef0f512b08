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
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kiwigrid/keta-sub001/pkg/logger"
	"github.com/kiwigrid/keta-sub001/pkg/models"
)

// KafkaSink produces records to a single topic, keyed by device guid so all
// records of one device land on the same partition.
type KafkaSink struct {
	producer sarama.SyncProducer
	log      *zap.SugaredLogger
	topic    string
}

var _ Sink = (*KafkaSink)(nil)

// NewKafkaSink connects a synchronous producer to the comma separated bootstrap servers.
func NewKafkaSink(bootstrapServers, topic string) (*KafkaSink, error) {
	config := sarama.NewConfig()
	config.ClientID = "devicewatch"
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(strings.Split(bootstrapServers, ","), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaSinkWithProducer(producer, topic), nil
}

func NewKafkaSinkWithProducer(producer sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		log:      logger.For(logger.ComponentSink),
		topic:    topic,
	}
}

func (s *KafkaSink) PublishEvent(channel string, event models.ChangeEvent) error {
	value, err := json.Marshal(newEventRecord(channel, event))
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return s.send(event.GUID(), channel, kindSegment(event.Kind()), value)
}

func (s *KafkaSink) PublishTagValue(channel string, value models.TagValue) error {
	encoded, err := json.Marshal(newTagValueRecord(channel, value))
	if err != nil {
		return fmt.Errorf("failed to encode tag value: %w", err)
	}
	return s.send(value.DeviceGUID, channel, TagValueKind, encoded)
}

func (s *KafkaSink) send(key, channel, kind string, value []byte) error {
	partition, offset, err := s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("channel"), Value: []byte(channel)},
			{Key: []byte("kind"), Value: []byte(kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to produce to %s: %w", s.topic, err)
	}
	s.log.Debugf("Produced %s record for %s to %s[%d]@%d", kind, key, s.topic, partition, offset)
	return nil
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
