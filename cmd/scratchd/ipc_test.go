package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startIPC runs an IPC server on a temp socket with a fake loop that answers
// snapshot requests and records everything else.
func startIPC(t *testing.T, queue int) (socket string, got <-chan Event) {
	t.Helper()

	// Unix socket paths are length limited; keep the directory short.
	dir, err := os.MkdirTemp("", "scratchd")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	socket = filepath.Join(dir, "ipc.sock")

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event, queue)
	recorded := make(chan Event, 16)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = runIPCServer(ctx, socket, events, discardLogger())
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				if req, ok := ev.(RequestStateSnapshot); ok {
					req.Reply <- StateSnapshot{Sample: "Fresh", Samples: []string{"Fresh"}}
					continue
				}
				recorded <- ev
			}
		}
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		<-loopDone
	})

	waitUntil(t, time.Second, func() bool {
		_, err := os.Stat(socket)
		return err == nil
	}, "socket not created")
	return socket, recorded
}

func TestIPC_SendEvent(t *testing.T) {
	socket, got := startIPC(t, 4)

	require.NoError(t, sendIPCEvent(socket, SelectSample{Name: "Bass"}))

	select {
	case ev := <-got:
		assert.Equal(t, SelectSample{Name: "Bass"}, ev)
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for event")
	}
}

func TestIPC_QueryState(t *testing.T) {
	socket, _ := startIPC(t, 4)

	snap, err := queryIPCState(socket)
	require.NoError(t, err)
	assert.Equal(t, "Fresh", snap.Sample)
}

func TestIPC_RejectsBadLine(t *testing.T) {
	socket, _ := startIPC(t, 4)

	_, err := sendIPCLine(socket, []byte(`{"type":"warp"}`))
	require.ErrorContains(t, err, "unknown event type")
}

func TestHandleIPCLine_QueueFull(t *testing.T) {
	events := make(chan Event) // nobody reading
	resp := handleIPCLine(context.Background(), []byte(`{"type":"pause"}`), events)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "event queue full", resp.Error)
}

func TestRequestSnapshot_Timeout(t *testing.T) {
	events := make(chan Event, 1) // accepted but never answered
	_, err := requestSnapshot(context.Background(), events, 20*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// sendIPCEvent is what scratch-ctl does for event commands.
func sendIPCEvent(socketPath string, ev Event) error {
	data, err := MarshalEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = sendIPCLine(socketPath, data)
	return err
}

// queryIPCState is what scratch-ctl does for "state".
func queryIPCState(socketPath string) (StateSnapshot, error) {
	data, err := json.Marshal(EventEnvelope{Type: typeRequestState})
	if err != nil {
		return StateSnapshot{}, err
	}
	resp, err := sendIPCLine(socketPath, data)
	if err != nil {
		return StateSnapshot{}, err
	}
	if resp.State == nil {
		return StateSnapshot{}, errors.New("ipc: response carries no state")
	}
	return *resp.State, nil
}

func sendIPCLine(socketPath string, line []byte) (IPCResponse, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "%s\n", strings.TrimSpace(string(line))); err != nil {
		return IPCResponse{}, fmt.Errorf("send event: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return IPCResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return resp, fmt.Errorf("ipc error: %s", resp.Error)
	}
	return resp, nil
}
