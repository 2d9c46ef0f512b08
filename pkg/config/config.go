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

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/united-manufacturing-hub/umh-utils/env"

	"github.com/kiwigrid/keta-sub001/pkg/constants"
)

// BusType selects the transport used to query device collections.
type BusType string

const (
	BusTypeMQTT BusType = "mqtt"
	BusTypeHTTP BusType = "http"
)

// SinkType selects where change events and tag values are forwarded to.
type SinkType string

const (
	SinkTypeLog   SinkType = "log"
	SinkTypeMQTT  SinkType = "mqtt"
	SinkTypeKafka SinkType = "kafka"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type MQTTConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

type KafkaConfig struct {
	BootstrapServer string
	Topic           string
}

// Config is the process configuration of the device watch agent.
type Config struct {
	BusType        BusType
	MQTT           MQTTConfig
	HTTPBusURL     string
	RequestTimeout time.Duration

	PollersFile  string
	PollInterval time.Duration

	SinkType            SinkType
	SinkMQTTTopicPrefix string
	Kafka               KafkaConfig

	MetricsPort int
	HealthPort  int
	SentryDSN   string
	AppVersion  string
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	var err error

	busType, err := env.GetAsString("BUS_TYPE", false, string(BusTypeMQTT))
	if err != nil {
		return Config{}, err
	}
	cfg.BusType = BusType(strings.ToLower(busType))

	if cfg.MQTT.BrokerURL, err = env.GetAsString("MQTT_BROKER_URL", cfg.BusType == BusTypeMQTT, ""); err != nil {
		return Config{}, err
	}
	if cfg.MQTT.ClientID, err = env.GetAsString("MQTT_CLIENT_ID", false, "devicewatch"); err != nil {
		return Config{}, err
	}
	if cfg.MQTT.Username, err = env.GetAsString("MQTT_USERNAME", false, ""); err != nil {
		return Config{}, err
	}
	if cfg.MQTT.Password, err = env.GetAsString("MQTT_PASSWORD", false, ""); err != nil {
		return Config{}, err
	}
	if cfg.MQTT.TopicPrefix, err = env.GetAsString("MQTT_TOPIC_PREFIX", false, constants.DefaultMQTTTopicPrefix); err != nil {
		return Config{}, err
	}
	if cfg.HTTPBusURL, err = env.GetAsString("BUS_HTTP_URL", cfg.BusType == BusTypeHTTP, ""); err != nil {
		return Config{}, err
	}

	timeoutMs, err := env.GetAsInt("BUS_REQUEST_TIMEOUT_MS", false, int(constants.DefaultRequestTimeout/time.Millisecond))
	if err != nil {
		return Config{}, err
	}
	cfg.RequestTimeout = time.Duration(timeoutMs) * time.Millisecond

	if cfg.PollersFile, err = env.GetAsString("POLLERS_FILE", false, "/data/pollers.yaml"); err != nil {
		return Config{}, err
	}
	intervalSeconds, err := env.GetAsInt("POLL_INTERVAL_SECONDS", false, int(constants.DefaultPollInterval/time.Second))
	if err != nil {
		return Config{}, err
	}
	cfg.PollInterval = time.Duration(intervalSeconds) * time.Second

	sinkType, err := env.GetAsString("SINK_TYPE", false, string(SinkTypeLog))
	if err != nil {
		return Config{}, err
	}
	cfg.SinkType = SinkType(strings.ToLower(sinkType))

	if cfg.SinkMQTTTopicPrefix, err = env.GetAsString("SINK_MQTT_TOPIC_PREFIX", false, constants.DefaultMQTTTopicPrefix+"/events"); err != nil {
		return Config{}, err
	}
	if cfg.Kafka.BootstrapServer, err = env.GetAsString("KAFKA_BOOTSTRAP_SERVER", cfg.SinkType == SinkTypeKafka, ""); err != nil {
		return Config{}, err
	}
	if cfg.Kafka.Topic, err = env.GetAsString("KAFKA_TOPIC", false, "keta.devicewatch"); err != nil {
		return Config{}, err
	}

	if cfg.MetricsPort, err = env.GetAsInt("METRICS_PORT", false, constants.DefaultMetricsPort); err != nil {
		return Config{}, err
	}
	if cfg.HealthPort, err = env.GetAsInt("HEALTH_PORT", false, constants.DefaultHealthPort); err != nil {
		return Config{}, err
	}
	if cfg.SentryDSN, err = env.GetAsString("SENTRY_DSN", false, ""); err != nil {
		return Config{}, err
	}
	if cfg.AppVersion, err = env.GetAsString("APP_VERSION", false, constants.DefaultAppVersion); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that the environment helpers cannot express.
func (c Config) Validate() error {
	switch c.BusType {
	case BusTypeMQTT:
		if c.MQTT.BrokerURL == "" {
			return fmt.Errorf("%w: MQTT_BROKER_URL is required for bus type %q", ErrInvalidConfig, c.BusType)
		}
	case BusTypeHTTP:
		if c.HTTPBusURL == "" {
			return fmt.Errorf("%w: BUS_HTTP_URL is required for bus type %q", ErrInvalidConfig, c.BusType)
		}
	default:
		return fmt.Errorf("%w: unknown bus type %q", ErrInvalidConfig, c.BusType)
	}

	switch c.SinkType {
	case SinkTypeLog:
	case SinkTypeMQTT:
		if c.MQTT.BrokerURL == "" {
			return fmt.Errorf("%w: MQTT_BROKER_URL is required for sink type %q", ErrInvalidConfig, c.SinkType)
		}
	case SinkTypeKafka:
		if c.Kafka.BootstrapServer == "" {
			return fmt.Errorf("%w: KAFKA_BOOTSTRAP_SERVER is required for sink type %q", ErrInvalidConfig, c.SinkType)
		}
	default:
		return fmt.Errorf("%w: unknown sink type %q", ErrInvalidConfig, c.SinkType)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout must be positive, got %s", ErrInvalidConfig, c.RequestTimeout)
	}
	if c.MetricsPort <= 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("%w: metrics port %d out of range", ErrInvalidConfig, c.MetricsPort)
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("%w: health port %d out of range", ErrInvalidConfig, c.HealthPort)
	}
	if c.HealthPort == c.MetricsPort {
		return fmt.Errorf("%w: health and metrics port are both %d", ErrInvalidConfig, c.MetricsPort)
	}
	return nil
}
