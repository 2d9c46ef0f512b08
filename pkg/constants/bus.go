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

package constants

import "time"

const (
	// DefaultRequestTimeout bounds a single request/reply round trip on the bus.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultMQTTTopicPrefix is the topic root used for request and reply topics.
	DefaultMQTTTopicPrefix = "keta"

	// DefaultMQTTQoS is used for bus requests. Replies are subscribed with the same QoS.
	DefaultMQTTQoS byte = 1

	// DefaultMetricsPort is the port of the prometheus endpoint.
	DefaultMetricsPort = 8080

	// DefaultHealthPort is the port of the liveness and readiness endpoints.
	DefaultHealthPort = 8086

	// DefaultAppVersion marks local development builds, which never report to sentry.
	DefaultAppVersion = "0.0.0-dev"

	// DefaultDevelopmentEnvironment is the sentry environment for pre-release builds.
	DefaultDevelopmentEnvironment = "development"

	// DefaultProductionEnvironment is the sentry environment for release builds.
	DefaultProductionEnvironment = "production"
)
