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

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kiwigrid/keta-sub001/pkg/logger"
	"github.com/kiwigrid/keta-sub001/pkg/sentry"
)

// Fetch result labels.
const (
	FetchResultOK      = "ok"
	FetchResultInvalid = "invalid"
	FetchResultError   = "error"
)

var (
	namespace = "keta"
	subsystem = "devicewatch"

	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fetches_total",
			Help:      "Total number of device collection fetches by channel and result",
		},
		[]string{"channel", "result"},
	)

	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of device collection fetches in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"channel"},
	)

	changeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "change_events_total",
			Help:      "Total number of change events delivered by channel and kind",
		},
		[]string{"channel", "kind"},
	)

	tagValuesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tag_values_total",
			Help:      "Total number of tag values delivered by channel",
		},
		[]string{"channel"},
	)

	consumerPanicsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "consumer_panics_total",
			Help:      "Total number of recovered consumer panics by channel",
		},
		[]string{"channel"},
	)

	tickOverrunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tick_overruns_total",
			Help:      "Total number of ticks that took longer than the poll interval",
		},
		[]string{"channel"},
	)

	activePollers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_pollers",
			Help:      "Number of pollers currently recorded in the registry",
		},
	)
)

// RecordFetch records the outcome and duration of one fetch.
func RecordFetch(channel string, result string, duration time.Duration) {
	fetchesTotal.WithLabelValues(channel, result).Inc()
	fetchDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

func RecordChangeEvent(channel string, kind string) {
	changeEventsTotal.WithLabelValues(channel, kind).Inc()
}

func RecordTagValue(channel string) {
	tagValuesTotal.WithLabelValues(channel).Inc()
}

func RecordConsumerPanic(channel string) {
	consumerPanicsTotal.WithLabelValues(channel).Inc()
}

func RecordTickOverrun(channel string) {
	tickOverrunsTotal.WithLabelValues(channel).Inc()
}

func SetActivePollers(n int) {
	activePollers.Set(float64(n))
}

// SetupMetricsEndpoint starts an HTTP server exposing /metrics on the given address.
// The caller is responsible for shutting the server down.
func SetupMetricsEndpoint(addr string) *http.Server {
	log := logger.For(logger.ComponentMetrics)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("Starting metrics server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.ReportIssuef(sentry.IssueTypeError, log, "Metrics server failed: %v", err)
		}
	}()

	return server
}
