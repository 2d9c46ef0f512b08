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

package mqtt_test

import (
	"errors"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken is an already completed token.
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	done := make(chan struct{})
	close(done)
	return done
}

type fakeMessage struct {
	MQTT.Message
	topic   string
	payload []byte
}

func (m *fakeMessage) Topic() string   { return m.topic }
func (m *fakeMessage) Payload() []byte { return m.payload }

type publishedMessage struct {
	topic   string
	payload []byte
}

// fakeClient is an in-memory stand-in for a broker connection. Methods not
// overridden here panic through the nil embedded interface.
type fakeClient struct {
	MQTT.Client

	mu            sync.Mutex
	connected     bool
	connectErrors []error
	connectCalls  int
	publishErr    error
	published     []publishedMessage
	subscriptions map[string]MQTT.MessageHandler
	disconnected  bool

	// onPublish runs asynchronously for every successful publish
	onPublish func(topic string, payload []byte)
}

func newFakeClient() *fakeClient {
	return &fakeClient{subscriptions: make(map[string]MQTT.MessageHandler)}
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsConnectionOpen() bool {
	return c.IsConnected()
}

func (c *fakeClient) Connect() MQTT.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectCalls++
	if len(c.connectErrors) > 0 {
		err := c.connectErrors[0]
		c.connectErrors = c.connectErrors[1:]
		return &fakeToken{err: err}
	}
	c.connected = true
	return &fakeToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnected = true
}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) MQTT.Token {
	c.mu.Lock()
	if c.publishErr != nil {
		err := c.publishErr
		c.mu.Unlock()
		return &fakeToken{err: err}
	}
	data, ok := payload.([]byte)
	if !ok {
		c.mu.Unlock()
		return &fakeToken{err: errors.New("unsupported payload type")}
	}
	c.published = append(c.published, publishedMessage{topic: topic, payload: data})
	onPublish := c.onPublish
	c.mu.Unlock()

	if onPublish != nil {
		go onPublish(topic, data)
	}
	return &fakeToken{}
}

func (c *fakeClient) Subscribe(topic string, _ byte, callback MQTT.MessageHandler) MQTT.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions[topic] = callback
	return &fakeToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) MQTT.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, topic := range topics {
		delete(c.subscriptions, topic)
	}
	return &fakeToken{}
}

// deliver hands a message to the subscriber of topic, if any.
func (c *fakeClient) deliver(topic string, payload []byte) bool {
	c.mu.Lock()
	handler, ok := c.subscriptions[topic]
	c.mu.Unlock()
	if !ok {
		return false
	}
	handler(c, &fakeMessage{topic: topic, payload: payload})
	return true
}

func (c *fakeClient) publishedMessages() []publishedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]publishedMessage(nil), c.published...)
}

func (c *fakeClient) subscribedTo(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subscriptions[topic]
	return ok
}
