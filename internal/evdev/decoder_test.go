package evdev

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(ms int64, typ, code uint16, value int32) Event {
	return Event{Sec: ms / 1000, Usec: (ms % 1000) * 1000, Type: typ, Code: code, Value: value}
}

func syn(ms int64) Event { return ev(ms, EV_SYN, SYN_REPORT, 0) }

func feedAll(d *Decoder, events ...Event) []Contact {
	var out []Contact
	for _, e := range events {
		if c, ok := d.Feed(e); ok {
			out = append(out, c)
		}
	}
	return out
}

func testMapping() Mapping {
	return Mapping{
		X:          AxisRange{Min: 0, Max: 4000},
		Y:          AxisRange{Min: 0, Max: 8000},
		ViewWidth:  400,
		ViewHeight: 800,
	}
}

func TestDecoder_MultiTouchLifecycle(t *testing.T) {
	d := NewDecoder(testMapping())

	got := feedAll(d,
		ev(1000, EV_ABS, ABS_MT_SLOT, 0),
		ev(1000, EV_ABS, ABS_MT_TRACKING_ID, 7),
		ev(1000, EV_ABS, ABS_MT_POSITION_X, 1000),
		ev(1000, EV_ABS, ABS_MT_POSITION_Y, 1000),
		syn(1000),
		ev(1016, EV_ABS, ABS_MT_POSITION_Y, 1600),
		syn(1016),
		ev(1032, EV_ABS, ABS_MT_TRACKING_ID, -1),
		syn(1032),
	)

	require.Len(t, got, 3)
	assert.Equal(t, Contact{Phase: PhaseBegin, X: 100, Y: 100, TimeMs: 1000}, got[0])
	assert.Equal(t, Contact{Phase: PhaseMove, X: 100, Y: 160, TimeMs: 1016}, got[1])
	assert.Equal(t, PhaseEnd, got[2].Phase)
	assert.Equal(t, int64(1032), got[2].TimeMs)
}

func TestDecoder_IgnoresOtherSlots(t *testing.T) {
	d := NewDecoder(testMapping())

	got := feedAll(d,
		ev(0, EV_ABS, ABS_MT_TRACKING_ID, 1),
		ev(0, EV_ABS, ABS_MT_POSITION_X, 400),
		ev(0, EV_ABS, ABS_MT_POSITION_Y, 400),
		syn(0),
		ev(10, EV_ABS, ABS_MT_SLOT, 1),
		ev(10, EV_ABS, ABS_MT_TRACKING_ID, 2),
		ev(10, EV_ABS, ABS_MT_POSITION_X, 3000),
		syn(10),
		ev(20, EV_ABS, ABS_MT_TRACKING_ID, -1),
		syn(20),
	)

	require.Len(t, got, 1, "a second finger must neither move nor lift the first")
	assert.Equal(t, PhaseBegin, got[0].Phase)
}

func TestDecoder_MultiTouchIgnoresEmulatedTouch(t *testing.T) {
	d := NewDecoder(testMapping())

	// Only slot 1 is down; the kernel still reports BTN_TOUCH and ABS_X/Y
	// for it.
	got := feedAll(d,
		ev(0, EV_ABS, ABS_MT_SLOT, 1),
		ev(0, EV_ABS, ABS_MT_TRACKING_ID, 3),
		ev(0, EV_ABS, ABS_MT_POSITION_X, 3000),
		ev(0, EV_ABS, ABS_MT_POSITION_Y, 3000),
		ev(0, EV_KEY, BTN_TOUCH, 1),
		ev(0, EV_ABS, ABS_X, 3000),
		ev(0, EV_ABS, ABS_Y, 3000),
		syn(0),
		ev(10, EV_ABS, ABS_MT_POSITION_Y, 3500),
		ev(10, EV_ABS, ABS_Y, 3500),
		syn(10),
		ev(20, EV_ABS, ABS_MT_TRACKING_ID, -1),
		ev(20, EV_KEY, BTN_TOUCH, 0),
		syn(20),
	)
	assert.Empty(t, got)

	got = feedAll(d,
		ev(30, EV_ABS, ABS_MT_SLOT, 0),
		ev(30, EV_ABS, ABS_MT_TRACKING_ID, 4),
		ev(30, EV_ABS, ABS_MT_POSITION_X, 2000),
		ev(30, EV_ABS, ABS_MT_POSITION_Y, 4000),
		ev(30, EV_KEY, BTN_TOUCH, 1),
		ev(30, EV_ABS, ABS_X, 2000),
		ev(30, EV_ABS, ABS_Y, 4000),
		syn(30),
	)
	require.Len(t, got, 1)
	assert.Equal(t, Contact{Phase: PhaseBegin, X: 200, Y: 400, TimeMs: 30}, got[0])
}

func TestDecoder_SingleTouchProtocol(t *testing.T) {
	d := NewDecoder(testMapping())

	got := feedAll(d,
		ev(0, EV_KEY, BTN_TOUCH, 1),
		ev(0, EV_ABS, ABS_X, 2000),
		ev(0, EV_ABS, ABS_Y, 4000),
		syn(0),
		syn(5),
		ev(10, EV_ABS, ABS_X, 2400),
		syn(10),
		ev(20, EV_KEY, BTN_TOUCH, 0),
		syn(20),
	)

	require.Len(t, got, 3, "a report without motion must not produce a move")
	assert.Equal(t, Contact{Phase: PhaseBegin, X: 200, Y: 400, TimeMs: 0}, got[0])
	assert.Equal(t, Contact{Phase: PhaseMove, X: 240, Y: 400, TimeMs: 10}, got[1])
	assert.Equal(t, PhaseEnd, got[2].Phase)
}

func TestDecoder_DropsReportAfterOverflow(t *testing.T) {
	d := NewDecoder(testMapping())

	got := feedAll(d,
		ev(0, EV_KEY, BTN_TOUCH, 1),
		syn(0),
		ev(5, EV_SYN, SYN_DROPPED, 0),
		ev(5, EV_ABS, ABS_X, 100),
		syn(5),
		ev(10, EV_ABS, ABS_X, 200),
		syn(10),
	)

	require.Len(t, got, 2)
	assert.Equal(t, PhaseBegin, got[0].Phase)
	assert.Equal(t, PhaseMove, got[1].Phase)
	assert.Equal(t, 20.0, got[1].X)
}

func TestMapping_UnknownRangePassesRawValues(t *testing.T) {
	d := NewDecoder(Mapping{})
	got := feedAll(d, ev(0, EV_KEY, BTN_TOUCH, 1), ev(0, EV_ABS, ABS_X, 33), syn(0))
	require.Len(t, got, 1)
	assert.Equal(t, 33.0, got[0].X)
}

func TestDecodeEvents_SkipsPartialTail(t *testing.T) {
	var buf bytes.Buffer
	want := []Event{ev(1500, EV_ABS, ABS_X, 12), syn(1500)}
	for _, e := range want {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, e))
	}
	buf.Write([]byte{1, 2, 3})

	got := decodeEvents(buf.Bytes(), nil)
	assert.Equal(t, want, got)
	assert.Equal(t, int64(1500), got[0].TimeMs())
}
