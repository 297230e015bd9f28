package main

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScratchGesture(t *testing.T) {
	lines, err := scratchGesture(100, 400, -120, 150, 3, 1000)
	require.NoError(t, err)
	require.Len(t, lines, 5)

	var types []string
	var last pointer
	for _, l := range lines {
		var env envelope
		require.NoError(t, json.Unmarshal(l, &env))
		types = append(types, env.Type)
		if env.Type == "contact_move" {
			require.NoError(t, json.Unmarshal(env.Data, &last))
		}
	}
	assert.Equal(t, []string{"contact_begin", "contact_move", "contact_move", "contact_move", "contact_end"}, types)
	assert.Equal(t, pointer{X: 100, Y: 280, TimestampMs: 1150}, last)

	_, err = scratchGesture(0, 0, 10, 100, 0, 0)
	assert.Error(t, err)
}

func TestMarshalEnvelope_NoPayload(t *testing.T) {
	line, err := marshalEnvelope("pause", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pause"}`, string(line))
}

func TestRoundTrip_StopsOnDaemonError(t *testing.T) {
	dir, err := os.MkdirTemp("", "scratchctl")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	sock := filepath.Join(dir, "s.sock")

	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	// Fake daemon: accepts the first line and rejects the rest.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		sc := bufio.NewScanner(conn)
		n := 0
		for sc.Scan() {
			n++
			resp := ipcResponse{Status: "ok"}
			if n > 1 {
				resp = ipcResponse{Status: "error", Error: "event queue full"}
			}
			_ = json.NewEncoder(conn).Encode(resp)
		}
	}()

	_, err = roundTrip(sock, [][]byte{[]byte(`{"type":"pause"}`), []byte(`{"type":"resume"}`)})
	require.ErrorContains(t, err, "event queue full")
}
