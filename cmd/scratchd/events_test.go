package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scratchd/turntable"
)

func TestUnmarshalEvent_Contacts(t *testing.T) {
	ev, err := UnmarshalEvent([]byte(`{"type":"contact_move","data":{"x":12.5,"y":40,"t_ms":1500}}`))
	require.NoError(t, err)
	assert.Equal(t, ContactMove{X: 12.5, Y: 40, TimestampMs: 1500}, ev)

	ev, err = UnmarshalEvent([]byte(`{"type":"contact_end"}`))
	require.NoError(t, err)
	assert.Equal(t, ContactEnd{}, ev)
}

func TestUnmarshalEvent_SelectSampleRequiresName(t *testing.T) {
	_, err := UnmarshalEvent([]byte(`{"type":"select_sample","data":{}}`))
	require.ErrorContains(t, err, "name is required")

	ev, err := UnmarshalEvent([]byte(`{"type":"select_sample","data":{"name":"Bass"}}`))
	require.NoError(t, err)
	assert.Equal(t, SelectSample{Name: "Bass"}, ev)
}

func TestUnmarshalEvent_Rejects(t *testing.T) {
	_, err := UnmarshalEvent([]byte(`{"type":"spin_faster"}`))
	require.ErrorContains(t, err, "unknown event type")

	_, err = UnmarshalEvent([]byte(`not json`))
	require.Error(t, err)

	_, err = UnmarshalEvent([]byte(`{"type":"contact_begin","data":{"x":"left"}}`))
	require.Error(t, err)
}

func TestLayoutChanged_Layout(t *testing.T) {
	ev, err := UnmarshalEvent([]byte(`{"type":"layout_changed","data":{"view_width":480,"view_height":800,"content_width":400,"content_height":400,"offset_y":50}}`))
	require.NoError(t, err)

	l := ev.(LayoutChanged).Layout()
	assert.Equal(t, turntable.OffsetDefault, l.OffsetX)
	assert.Equal(t, 50, l.OffsetY)
	assert.Equal(t, 400, l.ContentWidth)
}

func TestMarshalEvent(t *testing.T) {
	data, err := MarshalEvent(ContactBegin{X: 1, Y: 2, TimestampMs: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"contact_begin","data":{"x":1,"y":2,"t_ms":3}}`, string(data))

	data, err = MarshalEvent(Pause{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pause"}`, string(data))

	_, err = MarshalEvent(RequestStateSnapshot{})
	require.Error(t, err, "in-process events have no wire form")
}
