package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, c *Client) frame {
	t.Helper()
	select {
	case f := <-c.send:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return frame{}
	}
}

func TestHub_BroadcastToTopicOnly(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	doctor := uuid.New()
	subscriber := newClient(ClinicianTopic(doctor))
	other := newClient(ClinicianTopic(uuid.New()))
	hub.Register(subscriber)
	hub.Register(other)

	hub.Broadcast(Event{Type: EventAlertUpdated, Topic: ClinicianTopic(doctor)})

	f := receive(t, subscriber)
	assert.Equal(t, EventAlertUpdated, f.event)
	select {
	case <-other.send:
		t.Fatal("other clinician must not receive the event")
	default:
	}
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newClient("clinician:x")
	hub.Register(c)
	assert.Equal(t, 1, hub.TopicCount("clinician:x"))

	hub.Unregister(c)
	hub.Unregister(c)

	assert.Equal(t, 0, hub.TopicCount("clinician:x"))
	_, ok := <-c.send
	assert.False(t, ok)
}

func TestHub_FullBufferDrops(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := &Client{ID: "slow", Topic: "clinician:x", send: make(chan frame, 1)}
	hub.Register(c)

	hub.Broadcast(Event{Type: EventNewAlert, Topic: "clinician:x"})
	hub.Broadcast(Event{Type: EventAlertUpdated, Topic: "clinician:x"})

	assert.Equal(t, EventNewAlert, receive(t, c).event)
	assert.Len(t, c.send, 0)
}

func TestDispatcher_DeliversToClinician(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	doctor := uuid.New()
	c := newClient(ClinicianTopic(doctor))
	hub.Register(c)

	d := NewDispatcher(hub, 8, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	alertID := uuid.New()
	d.Notify(doctor, EventAlertUpdated, AlertUpdatedPayload{AlertID: alertID, Status: "VIEWED"})

	f := receive(t, c)
	var event Event
	require.NoError(t, json.Unmarshal(f.data, &event))
	assert.Equal(t, EventAlertUpdated, event.Type)
	assert.Equal(t, ClinicianTopic(doctor), event.Topic)

	var payload AlertUpdatedPayload
	require.NoError(t, json.Unmarshal(event.Data, &payload))
	assert.Equal(t, alertID, payload.AlertID)
	assert.Equal(t, "VIEWED", payload.Status)
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	d := NewDispatcher(NewHub(zerolog.Nop()), 1, zerolog.Nop())
	doctor := uuid.New()

	d.Notify(doctor, EventNewAlert, NewAlertPayload{})
	d.Notify(doctor, EventNewAlert, NewAlertPayload{})
	d.Notify(doctor, EventNewAlert, NewAlertPayload{})

	assert.Equal(t, int64(2), d.Dropped())
}

type failingPublisher struct{ calls chan struct{} }

func (f failingPublisher) Publish(context.Context, Event) error {
	f.calls <- struct{}{}
	return errors.New("transport down")
}

func TestDispatcher_PublishFailureKeepsRunning(t *testing.T) {
	pub := failingPublisher{calls: make(chan struct{}, 2)}
	d := NewDispatcher(pub, 4, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Notify(uuid.New(), EventNewDailyLog, NewDailyLogPayload{})
	d.Notify(uuid.New(), EventNewDailyLog, NewDailyLogPayload{})

	for i := 0; i < 2; i++ {
		select {
		case <-pub.calls:
		case <-time.After(2 * time.Second):
			t.Fatal("dispatcher stopped after a publish failure")
		}
	}
}

func TestRedisRelay_FansOutAcrossHubs(t *testing.T) {
	mr := miniredis.RunT(t)
	newRedis := func() *redis.Client {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		return client
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hubA, hubB := NewHub(zerolog.Nop()), NewHub(zerolog.Nop())
	relayA := NewRedisRelay(newRedis(), hubA, zerolog.Nop())
	relayB := NewRedisRelay(newRedis(), hubB, zerolog.Nop())
	require.NoError(t, relayA.Start(ctx))
	require.NoError(t, relayB.Start(ctx))

	doctor := uuid.New()
	c := newClient(ClinicianTopic(doctor))
	hubB.Register(c)

	require.NoError(t, relayA.Publish(ctx, Event{Type: EventNewAlert, Topic: ClinicianTopic(doctor)}))

	assert.Equal(t, EventNewAlert, receive(t, c).event)
}
