package position

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/track_logger/internal/gps"
)

func TestSampleHandler(t *testing.T) {
	var got []gps.Sample
	h := newSampleHandler(WatchOptions{MinDistance: DefaultMinDistance, HighAccuracy: true}, func(s gps.Sample) {
		got = append(got, s)
	})

	h.handle([]byte(`{"lat":10,"lon":20,"accuracy":4}`))
	h.handle([]byte(`{"lat":10.001,"lon":20}`))                // no accuracy in high accuracy mode
	h.handle([]byte(`{"lat":10.00001,"lon":20,"accuracy":4}`)) // ~1 m away
	h.handle([]byte(`not json`))
	h.handle([]byte(`{"lat":10.001,"lon":20,"accuracy":4}`))

	if len(got) != 2 {
		t.Fatalf("got %d samples, want 2: %+v", len(got), got)
	}
	if got[1].Latitude != 10.001 {
		t.Errorf("second sample = %+v", got[1])
	}
}

func TestSampleHandlerLowAccuracyKeepsUnrated(t *testing.T) {
	var n int
	h := newSampleHandler(WatchOptions{}, func(gps.Sample) { n++ })
	h.handle([]byte(`{"lat":1,"lon":2}`))
	if n != 1 {
		t.Errorf("unrated sample dropped without HighAccuracy")
	}
}

// fakeToken is a settable mqtt.Token that also reports SUBACK codes.
type fakeToken struct {
	done   chan struct{}
	err    error
	result map[string]byte
}

func doneToken(result map[string]byte) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), result: result}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool { <-t.done; return true }

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }

func (t *fakeToken) Error() error { return t.err }

func (t *fakeToken) Result() map[string]byte { return t.result }

// fakeClient records subscriptions. Methods not overridden panic.
type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	subToken     mqtt.Token
	handler      mqtt.MessageHandler
	unsubscribed int
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = callback
	return c.subToken
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribed++
	return doneToken(nil)
}

func (c *fakeClient) deliver(payload string) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	h(c, fakeMessage{payload: []byte(payload)})
}

func (c *fakeClient) unsubscribeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unsubscribed
}

type fakeMessage struct {
	mqtt.Message
	payload []byte
}

func (m fakeMessage) Payload() []byte { return m.payload }

const testTopic = "tracklog/gps/sample"

func TestMQTTWatchDeliversUntilCancel(t *testing.T) {
	client := &fakeClient{subToken: doneToken(map[string]byte{testTopic: 0})}
	svc := NewMQTTService(client, testTopic)

	var n int
	sub, err := svc.Watch(context.Background(), WatchOptions{HighAccuracy: true}, func(gps.Sample) { n++ })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	client.deliver(`{"lat":10,"lon":20,"accuracy":4}`)
	if err := sub.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	client.deliver(`{"lat":11,"lon":20,"accuracy":4}`)

	if n != 1 {
		t.Errorf("delivered %d samples, want 1", n)
	}
	if got := client.unsubscribeCount(); got != 1 {
		t.Errorf("unsubscribed %d times, want 1", got)
	}
}

func TestMQTTWatchRefusedByBroker(t *testing.T) {
	client := &fakeClient{subToken: doneToken(map[string]byte{testTopic: subackFailure})}
	svc := NewMQTTService(client, testTopic)

	_, err := svc.Watch(context.Background(), WatchOptions{}, func(gps.Sample) {
		t.Error("sample delivered on a refused subscription")
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Watch error = %v, want ErrPermissionDenied", err)
	}
	if got := client.unsubscribeCount(); got != 1 {
		t.Errorf("unsubscribed %d times, want 1", got)
	}
	client.deliver(`{"lat":10,"lon":20,"accuracy":4}`)
}

func TestMQTTWatchContextEndsBeforeSuback(t *testing.T) {
	pending := &fakeToken{done: make(chan struct{})}
	client := &fakeClient{subToken: pending}
	svc := NewMQTTService(client, testTopic)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := svc.Watch(ctx, WatchOptions{}, func(gps.Sample) {
		t.Error("sample delivered after Watch failed")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Watch error = %v, want deadline exceeded", err)
	}
	if got := client.unsubscribeCount(); got != 1 {
		t.Errorf("unsubscribed %d times, want 1", got)
	}

	// The broker acknowledges late; the handler must stay silent.
	close(pending.done)
	client.deliver(`{"lat":10,"lon":20,"accuracy":4}`)
}

func TestMQTTRequestPermission(t *testing.T) {
	tests := []struct {
		name string
		code byte
		want Permission
	}{
		{"granted qos0", 0, Granted},
		{"refused", subackFailure, Denied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{subToken: doneToken(map[string]byte{testTopic: tt.code})}
			got, err := NewMQTTService(client, testTopic).RequestPermission(context.Background())
			if err != nil {
				t.Fatalf("RequestPermission: %v", err)
			}
			if got != tt.want {
				t.Errorf("permission = %v, want %v", got, tt.want)
			}
		})
	}
}
