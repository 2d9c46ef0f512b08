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

// Package mqtt implements the bus as request/reply over an MQTT broker.
//
// A request is published to <prefix>/<channel>/request and carries a
// correlation id and the topic the answer is expected on. Every bus instance
// listens on its own reply topic <prefix>/reply/<clientID> and hands replies
// to the waiting request by correlation id.
package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/heptiolabs/healthcheck"
	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"
	"go.uber.org/zap"

	"github.com/kiwigrid/keta-sub001/pkg/bus"
	"github.com/kiwigrid/keta-sub001/pkg/constants"
	"github.com/kiwigrid/keta-sub001/pkg/logger"
	"github.com/kiwigrid/keta-sub001/pkg/models"
)

type Options struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	// PendingTTL is how long an unanswered correlation id is remembered. Defaults to twice the request timeout.
	PendingTTL time.Duration
}

type requestEnvelope struct {
	CorrelationID string `json:"correlationId"`
	ReplyTo       string `json:"replyTo"`
	models.Request
}

type replyEnvelope struct {
	CorrelationID string `json:"correlationId"`
	models.Reply
}

type Bus struct {
	client     MQTT.Client
	log        *zap.SugaredLogger
	pending    *expiremap.ExpireMap[string, chan models.Reply]
	done       chan struct{}
	prefix     string
	replyTopic string
	mu         sync.RWMutex
	closed     bool
	qos        byte
}

var _ bus.Requester = (*Bus)(nil)

// New creates a bus backed by a paho client. Call Connect before issuing requests.
func New(opts Options) *Bus {
	var b *Bus

	clientOpts := MQTT.NewClientOptions()
	clientOpts.AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetOrderMatters(false)
	// Resubscribe after every (re)connect, the session is not persisted
	clientOpts.SetCleanSession(true)
	clientOpts.SetOnConnectHandler(func(c MQTT.Client) {
		b.log.Infof("Connected to MQTT broker %s", opts.BrokerURL)
		if err := b.subscribeReplies(); err != nil {
			b.log.Errorf("Failed to subscribe to reply topic %s: %v", b.replyTopic, err)
		}
	})
	clientOpts.SetConnectionLostHandler(func(c MQTT.Client, err error) {
		b.log.Warnf("Connection to MQTT broker lost: %v", err)
	})

	b = newBus(MQTT.NewClient(clientOpts), opts)
	return b
}

// NewWithClient creates a bus on top of an existing client.
func NewWithClient(client MQTT.Client, opts Options) *Bus {
	return newBus(client, opts)
}

func newBus(client MQTT.Client, opts Options) *Bus {
	prefix := opts.TopicPrefix
	if prefix == "" {
		prefix = constants.DefaultMQTTTopicPrefix
	}
	ttl := opts.PendingTTL
	if ttl <= 0 {
		ttl = 2 * constants.DefaultRequestTimeout
	}

	return &Bus{
		client:     client,
		log:        logger.For(logger.ComponentMQTTBus),
		pending:    expiremap.NewEx[string, chan models.Reply](ttl, ttl),
		done:       make(chan struct{}),
		prefix:     prefix,
		replyTopic: ReplyTopic(prefix, opts.ClientID),
		qos:        constants.DefaultMQTTQoS,
	}
}

// Client returns the underlying connection so other publishers can share it.
func (b *Bus) Client() MQTT.Client {
	return b.client
}

// HealthCheck reports whether the broker connection is currently up.
func (b *Bus) HealthCheck() healthcheck.Check {
	return func() error {
		if b.client.IsConnected() {
			return nil
		}
		return bus.ErrNotConnected
	}
}

// RequestTopic is the topic requests for channel are published on.
func RequestTopic(prefix, channel string) string {
	return fmt.Sprintf("%s/%s/request", prefix, channel)
}

// ReplyTopic is the topic the bus with the given client id receives replies on.
func ReplyTopic(prefix, clientID string) string {
	return fmt.Sprintf("%s/reply/%s", prefix, clientID)
}

// Connect connects to the broker, retrying with exponential backoff until it
// succeeds or ctx is done, and subscribes to the reply topic.
func (b *Bus) Connect(ctx context.Context) error {
	operation := func() error {
		token := b.client.Connect()
		if err := waitToken(ctx, token); err != nil {
			b.log.Warnf("Failed to connect to MQTT broker: %v", err)
			return err
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(backoff.NewExponentialBackOff(), ctx)); err != nil {
		return fmt.Errorf("%w: %w", bus.ErrNotConnected, err)
	}
	return b.subscribeReplies()
}

func (b *Bus) subscribeReplies() error {
	return waitToken(context.Background(), b.client.Subscribe(b.replyTopic, b.qos, b.handleReply))
}

// Request implements bus.Requester.
func (b *Bus) Request(ctx context.Context, channel string, req models.Request) (models.Reply, error) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return models.Reply{}, bus.ErrClosed
	}
	if !b.client.IsConnectionOpen() {
		return models.Reply{}, bus.ErrNotConnected
	}

	correlationID := uuid.NewString()
	payload, err := json.Marshal(requestEnvelope{
		CorrelationID: correlationID,
		ReplyTo:       b.replyTopic,
		Request:       req,
	})
	if err != nil {
		return models.Reply{}, fmt.Errorf("failed to encode request: %w", err)
	}

	replies := make(chan models.Reply, 1)
	b.pending.Set(correlationID, replies)

	topic := RequestTopic(b.prefix, channel)
	b.log.Debugf("Publishing %s request %s to %s", req.Action, correlationID, topic)
	if err := waitToken(ctx, b.client.Publish(topic, b.qos, false, payload)); err != nil {
		return models.Reply{}, fmt.Errorf("failed to publish request to %s: %w", topic, err)
	}

	select {
	case reply := <-replies:
		return reply, nil
	case <-ctx.Done():
		return models.Reply{}, fmt.Errorf("no reply for request %s on %s: %w", correlationID, topic, bus.ContextError(ctx))
	case <-b.done:
		return models.Reply{}, bus.ErrClosed
	}
}

func (b *Bus) handleReply(_ MQTT.Client, msg MQTT.Message) {
	var envelope replyEnvelope
	if err := json.Unmarshal(msg.Payload(), &envelope); err != nil {
		b.log.Warnf("Dropping undecodable reply on %s: %v", msg.Topic(), err)
		return
	}

	replies, ok := b.pending.Load(envelope.CorrelationID)
	if !ok {
		b.log.Debugf("Dropping reply for unknown or expired request %s", envelope.CorrelationID)
		return
	}

	// Only the first reply per correlation id is delivered
	select {
	case *replies <- envelope.Reply:
	default:
		b.log.Debugf("Dropping duplicate reply for request %s", envelope.CorrelationID)
	}
}

// Close unsubscribes, disconnects and fails all waiting requests with bus.ErrClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	if b.client.IsConnectionOpen() {
		if err := waitToken(context.Background(), b.client.Unsubscribe(b.replyTopic)); err != nil {
			b.log.Warnf("Failed to unsubscribe from %s: %v", b.replyTopic, err)
		}
	}
	b.client.Disconnect(250)
	return nil
}

// waitToken blocks until the token completes or ctx is done.
func waitToken(ctx context.Context, token MQTT.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return bus.ContextError(ctx)
	}
}
