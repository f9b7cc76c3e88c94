package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() IngestionEvent {
	return IngestionEvent{
		RunID:        "run-1",
		Home:         "ONCB",
		Success:      true,
		MetricsSaved: true,
		PDFs:         2,
		Excels:       1,
		OccurredAt:   time.Unix(1700000000, 0).UTC(),
	}
}

func TestStreamPublisher_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	p := NewStreamPublisher(client, "cortex:ingestion:events", 0)
	require.NoError(t, p.Publish(context.Background(), sampleEvent()))

	msgs, err := client.XRange(context.Background(), "cortex:ingestion:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "ONCB", msgs[0].Values["home"])
	assert.Equal(t, "true", msgs[0].Values["success"])
	assert.Equal(t, "1700000000", msgs[0].Values["timestamp"])

	var decoded IngestionEvent
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &decoded))
	assert.Equal(t, 2, decoded.PDFs)
	assert.Equal(t, "run-1", decoded.RunID)
}

func TestStreamPublisher_ConnectionError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	err := NewStreamPublisher(client, "s", 0).Publish(context.Background(), sampleEvent())
	assert.Error(t, err)
}

type fakeToken struct {
	mqtt.Token
	done chan struct{}
	err  error
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type fakeMQTTClient struct {
	mqtt.Client
	topics   []string
	payloads [][]byte
	err      error
}

func (c *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload.([]byte))
	return newFakeToken(c.err)
}

func TestMQTTPublisher_Publish(t *testing.T) {
	client := &fakeMQTTClient{}
	p := newMQTTPublisher(client, "cortex/ingestion", 1)

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))

	require.Len(t, client.payloads, 1)
	assert.Equal(t, "cortex/ingestion", client.topics[0])
	var decoded IngestionEvent
	require.NoError(t, json.Unmarshal(client.payloads[0], &decoded))
	assert.Equal(t, "ONCB", decoded.Home)
}

func TestMQTTPublisher_PublishError(t *testing.T) {
	client := &fakeMQTTClient{err: errors.New("not connected")}
	err := newMQTTPublisher(client, "t", 0).Publish(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "not connected")
}

type recordingPublisher struct {
	n   int
	err error
}

func (r *recordingPublisher) Publish(context.Context, IngestionEvent) error {
	r.n++
	return r.err
}

func TestMulti_PublishesToAllAndJoinsErrors(t *testing.T) {
	ok := &recordingPublisher{}
	bad := &recordingPublisher{err: errors.New("down")}

	err := Multi{bad, ok, Nop{}}.Publish(context.Background(), sampleEvent())

	assert.ErrorContains(t, err, "down")
	assert.Equal(t, 1, ok.n)
	assert.Equal(t, 1, bad.n)
	assert.NoError(t, Multi{ok}.Publish(context.Background(), sampleEvent()))
}
