// Package evdev reads Linux input devices and turns touch reports into
// single-finger contacts.
package evdev

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Event types and codes from <linux/input-event-codes.h>.
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_ABS = 0x03

	SYN_REPORT  = 0x00
	SYN_DROPPED = 0x03

	BTN_TOUCH = 0x14a

	ABS_X              = 0x00
	ABS_Y              = 0x01
	ABS_MT_SLOT        = 0x2f
	ABS_MT_POSITION_X  = 0x35
	ABS_MT_POSITION_Y  = 0x36
	ABS_MT_TRACKING_ID = 0x39
)

// Event mirrors struct input_event on 64-bit Linux:
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type Event struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// EventSize is the wire size of one Event.
var EventSize = binary.Size(Event{})

// TimeMs returns the kernel timestamp in milliseconds.
func (e Event) TimeMs() int64 {
	return e.Sec*1000 + e.Usec/1000
}

func (e Event) String() string {
	return fmt.Sprintf("evdev(type=%#x code=%#x value=%d t=%dms)", e.Type, e.Code, e.Value, e.TimeMs())
}

// decodeEvents parses every whole event in buf. A trailing partial event is ignored.
func decodeEvents(buf []byte, out []Event) []Event {
	r := bytes.NewReader(nil)
	for len(buf) >= EventSize {
		r.Reset(buf[:EventSize])
		var ev Event
		if err := binary.Read(r, binary.LittleEndian, &ev); err == nil {
			out = append(out, ev)
		}
		buf = buf[EventSize:]
	}
	return out
}
