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

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kiwigrid/keta-sub001/pkg/bus"
	httpbus "github.com/kiwigrid/keta-sub001/pkg/bus/http"
	mqttbus "github.com/kiwigrid/keta-sub001/pkg/bus/mqtt"
	"github.com/kiwigrid/keta-sub001/pkg/config"
	"github.com/kiwigrid/keta-sub001/pkg/logger"
	"github.com/kiwigrid/keta-sub001/pkg/metrics"
	"github.com/kiwigrid/keta-sub001/pkg/poller"
	"github.com/kiwigrid/keta-sub001/pkg/sentry"
	"github.com/kiwigrid/keta-sub001/pkg/sink"
)

const statusInterval = time.Minute

func main() {
	logger.Initialize()
	log := logger.For(logger.ComponentCore)
	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeError, log, "Failed to load config: %v", err)
		os.Exit(1)
	}

	sentry.InitSentry(cfg.SentryDSN, cfg.AppVersion, true)
	log.Infof("Starting devicewatch %s (bus: %s, sink: %s)", cfg.AppVersion, cfg.BusType, cfg.SinkType)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		sentry.ReportIssuef(sentry.IssueTypeError, log, "devicewatch stopped: %v", err)
		os.Exit(1)
	}
	log.Info("devicewatch stopped")
}

func run(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) error {
	definitions, err := config.LoadPollers(cfg.PollersFile)
	if err != nil {
		return err
	}
	if len(definitions) == 0 {
		log.Warnf("No pollers defined in %s", cfg.PollersFile)
	}

	requester, mqttConnection, err := connectBus(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeQuietly(log, "bus", requester)

	if cfg.SinkType == config.SinkTypeMQTT && mqttConnection == nil {
		if mqttConnection, err = dialMQTT(ctx, cfg, cfg.MQTT.ClientID+"-sink"); err != nil {
			return err
		}
		defer closeQuietly(log, "sink connection", mqttConnection)
	}

	out, err := openSink(cfg, mqttConnection)
	if err != nil {
		return err
	}
	defer closeQuietly(log, "sink", out)

	service := poller.NewService(poller.Config{Requester: requester})
	handles := make([]*poller.Handle, 0, len(definitions))
	for _, def := range definitions {
		interval := def.Interval(cfg.PollInterval)
		switch def.Kind {
		case config.PollerKindTagValue:
			handles = append(handles, service.StartTagValuePolling(def.Channel, def.Params, sink.ForwardTagValues(def.Channel, out), interval))
		default:
			handles = append(handles, service.StartDevicePolling(def.Channel, def.Params, sink.ForwardEvents(def.Channel, out), interval))
		}
		log.Infof("Polling %s devices on %s every %s", def.Kind, def.Channel, interval)
	}

	server := metrics.SetupMetricsEndpoint(fmt.Sprintf(":%d", cfg.MetricsPort))
	healthServer := setupHealthEndpoint(log, cfg.HealthPort, mqttConnection)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down, stopping all pollers")
		service.StopAllPolling()
		for _, handle := range handles {
			<-handle.Done()
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// stay below the container stop timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return errors.Join(server.Shutdown(shutdownCtx), healthServer.Shutdown(shutdownCtx))
	})
	g.Go(func() error {
		reportStatus(gctx, log, handles)
		return nil
	})

	return g.Wait()
}

// connectBus creates the configured requester. For the mqtt bus the
// connection is returned as well so the mqtt sink can publish through it.
func connectBus(ctx context.Context, cfg config.Config) (bus.Requester, *mqttbus.Bus, error) {
	switch cfg.BusType {
	case config.BusTypeHTTP:
		return httpbus.New(cfg.HTTPBusURL, cfg.RequestTimeout), nil, nil
	case config.BusTypeMQTT:
		b, err := dialMQTT(ctx, cfg, cfg.MQTT.ClientID)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown bus type %q", config.ErrInvalidConfig, cfg.BusType)
}

func dialMQTT(ctx context.Context, cfg config.Config, clientID string) (*mqttbus.Bus, error) {
	b := mqttbus.New(mqttbus.Options{
		BrokerURL:   cfg.MQTT.BrokerURL,
		ClientID:    clientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		PendingTTL:  2 * cfg.RequestTimeout,
	})
	if err := b.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.MQTT.BrokerURL, err)
	}
	return b, nil
}

func openSink(cfg config.Config, mqttConnection *mqttbus.Bus) (sink.Sink, error) {
	switch cfg.SinkType {
	case config.SinkTypeLog:
		return sink.NewLogSink(nil), nil
	case config.SinkTypeKafka:
		return sink.NewKafkaSink(cfg.Kafka.BootstrapServer, cfg.Kafka.Topic)
	case config.SinkTypeMQTT:
		return sink.NewMQTTSink(mqttConnection.Client(), cfg.SinkMQTTTopicPrefix), nil
	}
	return nil, fmt.Errorf("%w: unknown sink type %q", config.ErrInvalidConfig, cfg.SinkType)
}

// setupHealthEndpoint serves /live and /ready. Readiness follows the broker
// connection when one is in use.
func setupHealthEndpoint(log *zap.SugaredLogger, port int, mqttConnection *mqttbus.Bus) *http.Server {
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))
	if mqttConnection != nil {
		health.AddReadinessCheck("mqtt-connection", mqttConnection.HealthCheck())
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           health,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Error starting healthcheck: %v", err)
		}
	}()
	return server
}

// reportStatus periodically logs what every poller last saw until ctx is done.
func reportStatus(ctx context.Context, log *zap.SugaredLogger, handles []*poller.Handle) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, handle := range handles {
				status := handle.Status()
				if status.LastError != nil {
					log.Warnf("Poller %s: %d ticks, last error: %v", status.Channel, status.Ticks, status.LastError)
					continue
				}
				log.Infof("Poller %s: %d ticks, last at %s, fingerprint %016x", status.Channel, status.Ticks, status.LastTick.Format(time.RFC3339), status.Fingerprint)
			}
		}
	}
}

func closeQuietly(log *zap.SugaredLogger, what string, resource any) {
	closer, ok := resource.(bus.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil && !errors.Is(err, bus.ErrClosed) {
		log.Warnf("Failed to close %s: %v", what, err)
	}
}
