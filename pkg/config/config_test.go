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

package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kiwigrid/keta-sub001/pkg/config"
)

var configEnvKeys = []string{
	"BUS_TYPE", "MQTT_BROKER_URL", "MQTT_CLIENT_ID", "MQTT_USERNAME", "MQTT_PASSWORD",
	"MQTT_TOPIC_PREFIX", "BUS_HTTP_URL", "BUS_REQUEST_TIMEOUT_MS", "POLLERS_FILE",
	"POLL_INTERVAL_SECONDS", "SINK_TYPE", "SINK_MQTT_TOPIC_PREFIX", "KAFKA_BOOTSTRAP_SERVER",
	"KAFKA_TOPIC", "METRICS_PORT", "HEALTH_PORT", "SENTRY_DSN", "APP_VERSION",
}

func setEnv(values map[string]string) {
	for _, key := range configEnvKeys {
		previous, had := os.LookupEnv(key)
		Expect(os.Unsetenv(key)).To(Succeed())
		DeferCleanup(func() {
			if had {
				_ = os.Setenv(key, previous)
			} else {
				_ = os.Unsetenv(key)
			}
		})
	}
	for key, value := range values {
		Expect(os.Setenv(key, value)).To(Succeed())
	}
}

var _ = Describe("Load", func() {
	It("applies defaults for an mqtt bus", func() {
		setEnv(map[string]string{"MQTT_BROKER_URL": "tcp://broker:1883"})

		cfg, err := config.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.BusType).To(Equal(config.BusTypeMQTT))
		Expect(cfg.MQTT.BrokerURL).To(Equal("tcp://broker:1883"))
		Expect(cfg.MQTT.ClientID).To(Equal("devicewatch"))
		Expect(cfg.MQTT.TopicPrefix).To(Equal("keta"))
		Expect(cfg.SinkType).To(Equal(config.SinkTypeLog))
		Expect(cfg.PollInterval).To(Equal(15 * time.Second))
		Expect(cfg.RequestTimeout).To(Equal(10 * time.Second))
		Expect(cfg.MetricsPort).To(Equal(8080))
		Expect(cfg.HealthPort).To(Equal(8086))
	})

	It("reads an http bus with a kafka sink", func() {
		setEnv(map[string]string{
			"BUS_TYPE":               "HTTP",
			"BUS_HTTP_URL":           "http://devices.local/api",
			"BUS_REQUEST_TIMEOUT_MS": "2500",
			"SINK_TYPE":              "kafka",
			"KAFKA_BOOTSTRAP_SERVER": "kafka:9092",
			"KAFKA_TOPIC":            "devices",
		})

		cfg, err := config.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.BusType).To(Equal(config.BusTypeHTTP))
		Expect(cfg.HTTPBusURL).To(Equal("http://devices.local/api"))
		Expect(cfg.RequestTimeout).To(Equal(2500 * time.Millisecond))
		Expect(cfg.Kafka.BootstrapServer).To(Equal("kafka:9092"))
		Expect(cfg.Kafka.Topic).To(Equal("devices"))
	})

	It("requires a broker url for the mqtt bus", func() {
		setEnv(nil)

		_, err := config.Load()
		Expect(err).To(HaveOccurred())
	})

	It("rejects an unknown bus type", func() {
		setEnv(map[string]string{"BUS_TYPE": "carrier-pigeon"})

		_, err := config.Load()
		Expect(err).To(MatchError(config.ErrInvalidConfig))
	})
})

var _ = Describe("Validate", func() {
	var cfg config.Config

	BeforeEach(func() {
		cfg = config.Config{
			BusType:        config.BusTypeHTTP,
			HTTPBusURL:     "http://devices.local",
			RequestTimeout: time.Second,
			SinkType:       config.SinkTypeLog,
			MetricsPort:    8080,
			HealthPort:     8086,
		}
	})

	It("accepts a complete configuration", func() {
		Expect(cfg.Validate()).To(Succeed())
	})

	It("requires a broker for the mqtt sink", func() {
		cfg.SinkType = config.SinkTypeMQTT
		Expect(cfg.Validate()).To(MatchError(config.ErrInvalidConfig))
	})

	It("rejects an out of range metrics port", func() {
		cfg.MetricsPort = 70000
		Expect(cfg.Validate()).To(MatchError(config.ErrInvalidConfig))
	})

	It("rejects sharing the metrics port", func() {
		cfg.HealthPort = cfg.MetricsPort
		Expect(cfg.Validate()).To(MatchError(config.ErrInvalidConfig))
	})

	It("rejects a non-positive request timeout", func() {
		cfg.RequestTimeout = 0
		Expect(cfg.Validate()).To(MatchError(config.ErrInvalidConfig))
	})
})

var _ = Describe("Pollers", func() {
	It("parses definitions and defaults the kind", func() {
		defs, err := config.ParsePollers([]byte(`
pollers:
  - channel: site-a
    params:
      type: inverter
    intervalSeconds: 30
  - channel: site-b
    kind: tagvalue
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(defs).To(HaveLen(2))

		Expect(defs[0].Channel).To(Equal("site-a"))
		Expect(defs[0].Kind).To(Equal(config.PollerKindDevice))
		Expect(defs[0].Params).To(HaveKeyWithValue("type", "inverter"))
		Expect(defs[0].Interval(time.Minute)).To(Equal(30 * time.Second))

		Expect(defs[1].Kind).To(Equal(config.PollerKindTagValue))
		Expect(defs[1].Interval(time.Minute)).To(Equal(time.Minute))
	})

	It("accepts an empty document", func() {
		defs, err := config.ParsePollers(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(defs).To(BeEmpty())
	})

	DescribeTable("rejects invalid definitions",
		func(doc string) {
			_, err := config.ParsePollers([]byte(doc))
			Expect(err).To(HaveOccurred())
		},
		Entry("missing channel", "pollers:\n  - kind: device\n"),
		Entry("unknown kind", "pollers:\n  - channel: a\n    kind: alarms\n"),
		Entry("negative interval", "pollers:\n  - channel: a\n    intervalSeconds: -5\n"),
		Entry("unknown field", "pollers:\n  - channel: a\n    color: red\n"),
	)

	It("loads definitions from a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "pollers.yaml")
		Expect(os.WriteFile(path, []byte("pollers:\n  - channel: site-a\n"), 0o600)).To(Succeed())

		defs, err := config.LoadPollers(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(defs).To(HaveLen(1))
	})

	It("reports a missing file", func() {
		_, err := config.LoadPollers(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
		Expect(err).To(HaveOccurred())
	})
})
