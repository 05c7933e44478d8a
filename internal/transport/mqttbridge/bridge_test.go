// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mqttbridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/cube_tracker/internal/transport"
)

// doneToken is an already completed mqtt.Token.
type doneToken struct {
	err  error
	done chan struct{}
}

func newDoneToken(err error) *doneToken {
	t := &doneToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

// pendingToken never completes.
type pendingToken struct{ doneToken }

func (t *pendingToken) Done() <-chan struct{} { return make(chan struct{}) }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

// fakeClient records publishes and subscriptions. Unused methods panic
// through the nil embedded interface.
type fakeClient struct {
	mqtt.Client

	mu        sync.Mutex
	published []published
	handlers  map[string]mqtt.MessageHandler
	token     mqtt.Token
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]mqtt.MessageHandler), token: newDoneToken(nil)}
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return c.token
}

func (c *fakeClient) Subscribe(topic string, qos byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = cb
	return newDoneToken(nil)
}

// deliver invokes the handler registered for filter with a message on topic.
func (c *fakeClient) deliver(filter, topic string, payload []byte) {
	c.mu.Lock()
	h := c.handlers[filter]
	c.mu.Unlock()
	h(c, &fakeMessage{topic: topic, payload: payload})
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func TestTopicRoundTrip(t *testing.T) {
	topic := Topic("toio", "cubeA", transport.KindPosition)
	assert.Equal(t, "toio/cubeA/position", topic)

	key, name, ok := ParseTopic("toio", topic)
	require.True(t, ok)
	assert.Equal(t, "cubeA", key)
	assert.Equal(t, "position", name)
}

func TestParseTopicRejects(t *testing.T) {
	for _, topic := range []string{
		"other/cubeA/position",
		"toio/cubeA",
		"toio//position",
		"toio/cubeA/",
		"toio/cubeA/position/extra",
		"toiox/cubeA/position",
	} {
		_, _, ok := ParseTopic("toio", topic)
		assert.False(t, ok, topic)
	}
}

func TestSubscribeRoutesNotifications(t *testing.T) {
	client := newFakeClient()
	b := New(client, "toio/")
	reg := transport.NewRegistry()

	var got []transport.Notification
	require.NoError(t, b.Subscribe(func(n transport.Notification) { got = append(got, n) }, reg))

	assert.Contains(t, client.handlers, "toio/+/position")
	assert.Contains(t, client.handlers, "toio/+/euler")
	assert.Contains(t, client.handlers, "toio/+/caps")

	client.deliver("toio/+/position", "toio/cubeA/position", []byte{0x03})
	client.deliver("toio/+/euler", "toio/cubeB/euler", []byte{0x03, 0x01})
	client.deliver("toio/+/position", "elsewhere/cubeA/position", []byte{0x03})

	require.Len(t, got, 2)
	assert.Equal(t, transport.Notification{DeviceKey: "cubeA", Kind: transport.KindPosition, Payload: []byte{0x03}}, got[0])
	assert.Equal(t, transport.KindEuler, got[1].Kind)

	client.deliver("toio/+/caps", "toio/cubeA/caps", []byte("position|motor"))
	caps, ok := reg.Capabilities("cubeA")
	require.True(t, ok)
	assert.True(t, caps.Has(transport.KindMotor))
}

func TestSendCommandPublishesRawFrame(t *testing.T) {
	client := newFakeClient()
	b := New(client, "toio")

	frame := []byte{0x01, 0x01, 0x01, 0x30, 0x02, 0x01, 0x30}
	require.NoError(t, b.SendCommand(context.Background(), "cubeA", transport.KindMotor, frame))

	require.Len(t, client.published, 1)
	assert.Equal(t, published{topic: "toio/cubeA/motor", payload: frame}, client.published[0])
}

func TestSendCommandReportsBrokerError(t *testing.T) {
	client := newFakeClient()
	client.token = newDoneToken(errors.New("not connected"))
	b := New(client, "toio")

	err := b.SendCommand(context.Background(), "cubeA", transport.KindMotor, []byte{0x01})
	assert.ErrorContains(t, err, "not connected")
}

func TestSendCommandHonoursContext(t *testing.T) {
	client := newFakeClient()
	client.token = &pendingToken{}
	b := New(client, "toio")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.SendCommand(ctx, "cubeA", transport.KindConfig, []byte{0x1d})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDeclareCapabilitiesIsRetained(t *testing.T) {
	client := newFakeClient()
	b := New(client, "toio")

	caps := transport.Capabilities(0).With(transport.KindPosition).With(transport.KindEuler)
	require.NoError(t, b.DeclareCapabilities(context.Background(), "cubeA", caps))

	require.Len(t, client.published, 1)
	assert.Equal(t, published{topic: "toio/cubeA/caps", retained: true, payload: []byte("position|euler")}, client.published[0])
}
