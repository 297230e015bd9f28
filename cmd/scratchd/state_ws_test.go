package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scratchd/turntable"
)

// These tests exercise the hub and broadcaster without a websocket server.
// Clients are built with nil conns; the hub guards against nil on close.

func newTestHub(t *testing.T, sendBuf int, broadcastBuf int) *Hub {
	t.Helper()
	return NewHub(discardLogger(), HubConfig{
		SendBuf:      sendBuf,
		BroadcastBuf: broadcastBuf,
	})
}

func newTestClient(hub *Hub, name string, sendBuf int) *Client {
	c := NewClient(hub, nil, nil, name, discardLogger())
	c.send = make(chan []byte, sendBuf)
	return c
}

func runHub(t *testing.T, hub *Hub) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for hub to stop")
		}
	})
	return cancel
}

func registerClient(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	hub.register <- c
	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[c]
		return ok
	}, c.remoteAddr+" not registered in time")
}

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
		return nil
	}
}

func TestHub_BroadcastDeliveredToAllClients(t *testing.T) {
	hub := newTestHub(t, 4, 8)
	runHub(t, hub)

	c1 := newTestClient(hub, "c1", 4)
	c2 := newTestClient(hub, "c2", 4)
	registerClient(t, hub, c1)
	registerClient(t, hub, c2)
	assert.Equal(t, 2, hub.Clients())

	msg := []byte(`{"type":"sample_changed","data":{"name":"Bass"}}`)
	hub.broadcast <- msg

	assert.Equal(t, msg, receive(t, c1.send))
	assert.Equal(t, msg, receive(t, c2.send))
}

func TestHub_SlowClientDisconnectedOnFullSendBuffer(t *testing.T) {
	hub := newTestHub(t, 1, 8)
	runHub(t, hub)

	slow := newTestClient(hub, "slow", 1)
	fast := newTestClient(hub, "fast", 8)
	registerClient(t, hub, slow)
	registerClient(t, hub, fast)

	slow.send <- []byte(`"already queued"`)

	msg := []byte(`{"type":"transform","data":{}}`)
	hub.broadcast <- msg

	assert.Equal(t, msg, receive(t, fast.send))

	// Drain the pre-filled message, then expect the channel to be closed.
	select {
	case <-slow.send:
	default:
	}
	waitUntil(t, 750*time.Millisecond, func() bool {
		select {
		case _, ok := <-slow.send:
			return !ok
		default:
			return false
		}
	}, "expected slow send channel to be closed")
	assert.Equal(t, 1, hub.Clients())
}

func decodeFrame(t *testing.T, msg []byte) (string, json.RawMessage) {
	t.Helper()
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg, &env))
	return env.Type, env.Data
}

func TestRunBroadcaster_CoalescesTransforms(t *testing.T) {
	hub := newTestHub(t, 16, 16)
	runHub(t, hub)
	c := newTestClient(hub, "renderer", 16)
	registerClient(t, hub, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := make(chan StateBroadcast, 8)
	go RunBroadcaster(ctx, hub, src, discardLogger())

	for deg := 1.0; deg <= 3; deg++ {
		src <- BroadcastTransform{Transform: turntable.Transform{RotateDegrees: deg}}
	}

	typ, data := decodeFrame(t, receive(t, c.send))
	require.Equal(t, wsTypeTransform, typ)
	var tr turntable.Transform
	require.NoError(t, json.Unmarshal(data, &tr))
	assert.Equal(t, 3.0, tr.RotateDegrees, "latest transform wins")

	select {
	case extra := <-c.send:
		t.Fatalf("unexpected extra frame %s", extra)
	case <-time.After(3 * wsTransformCoalesceWindow):
	}
}

func TestRunBroadcaster_FlushesPendingTransformBeforeOtherEvents(t *testing.T) {
	hub := newTestHub(t, 16, 16)
	runHub(t, hub)
	c := newTestClient(hub, "renderer", 16)
	registerClient(t, hub, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := make(chan StateBroadcast, 8)
	go RunBroadcaster(ctx, hub, src, discardLogger())

	src <- BroadcastTransform{Transform: turntable.Transform{RotateDegrees: 10}}
	src <- BroadcastSampleChanged{Name: "Fresh"}

	typ, _ := decodeFrame(t, receive(t, c.send))
	assert.Equal(t, wsTypeTransform, typ)

	typ, data := decodeFrame(t, receive(t, c.send))
	assert.Equal(t, wsTypeSampleChanged, typ)
	assert.JSONEq(t, `{"name":"Fresh"}`, string(data))
}

func TestConvertBroadcast_Playback(t *testing.T) {
	ev, ok := convertBroadcast(BroadcastPlayback{Playback: turntable.Playback{
		Command: turntable.PlaybackCommand{Kind: turntable.PlayBackward, Velocity: 900},
		Sample:  "Uuh",
		Clip:    "uuh_bw.wav",
		Pitch:   1.2,
	}})
	require.True(t, ok)
	assert.Equal(t, wsTypePlayback, ev.Type)

	data, err := json.Marshal(ev.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"backward","velocity":900,"sample":"Uuh","clip":"uuh_bw.wav","pitch":1.2}`, string(data))
}

func TestClient_ForwardsInboundEvents(t *testing.T) {
	events := make(chan Event, 1)
	c := NewClient(nil, nil, events, "renderer", discardLogger())
	ctx := context.Background()

	c.forward(ctx, []byte(`{"type":"contact_begin","data":{"x":5,"y":6,"t_ms":7}}`))
	c.forward(ctx, []byte(`{"type":"bogus"}`))

	require.Len(t, events, 1)
	assert.Equal(t, ContactBegin{X: 5, Y: 6, TimestampMs: 7}, <-events)
}

func TestClient_ForwardWaitsForQueueSpace(t *testing.T) {
	events := make(chan Event, 1)
	events <- Pause{}
	c := NewClient(nil, nil, events, "renderer", discardLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.forward(context.Background(), []byte(`{"type":"contact_end","data":{"t_ms":9}}`))
	}()

	select {
	case <-done:
		t.Fatal("forward returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, Pause{}, <-events)
	<-done
	assert.Equal(t, ContactEnd{TimestampMs: 9}, <-events)
}

func TestClient_ForwardGivesUpOnCancel(t *testing.T) {
	events := make(chan Event, 1)
	events <- Pause{}
	c := NewClient(nil, nil, events, "renderer", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.forward(ctx, []byte(`{"type":"resume"}`))

	assert.Len(t, events, 1)
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
