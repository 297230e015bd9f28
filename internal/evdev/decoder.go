package evdev

// Phase is the lifecycle stage of a contact.
type Phase int

const (
	PhaseBegin Phase = iota + 1
	PhaseMove
	PhaseEnd
)

func (p Phase) String() string {
	switch p {
	case PhaseBegin:
		return "begin"
	case PhaseMove:
		return "move"
	case PhaseEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Contact is one finger report in view pixels.
type Contact struct {
	Phase  Phase
	X, Y   float64
	TimeMs int64
}

// AxisRange is the raw coordinate range of a device axis.
type AxisRange struct {
	Min, Max int32
}

// Span is the number of raw units covered by the axis.
func (a AxisRange) Span() int32 { return a.Max - a.Min }

// Mapping converts raw device coordinates into view pixels.
type Mapping struct {
	X, Y AxisRange

	ViewWidth  float64
	ViewHeight float64
}

func (m Mapping) scale(raw int32, axis AxisRange, size float64) float64 {
	span := axis.Span()
	if span <= 0 || size <= 0 {
		return float64(raw)
	}
	return float64(raw-axis.Min) * size / float64(span)
}

// Decoder tracks the first finger of a touch device and reports its
// contact lifecycle. Reports are committed on SYN_REPORT.
//
// Both the legacy single-touch protocol (BTN_TOUCH, ABS_X/ABS_Y) and the
// multi-touch type B protocol (slot 0 only) are understood. Once a device
// sends any ABS_MT_* event its single-touch emulation is ignored, as that
// follows whichever finger is down rather than slot 0.
type Decoder struct {
	mapping Mapping

	slot    int32
	down    bool
	wasDown bool
	rawX    int32
	rawY    int32
	moved   bool

	multiTouch bool

	// Set after SYN_DROPPED until the next SYN_REPORT.
	dropping bool
}

// NewDecoder returns a decoder for a device with the given mapping.
func NewDecoder(m Mapping) *Decoder {
	return &Decoder{mapping: m}
}

// Feed consumes one raw event and returns a contact when a report completes.
func (d *Decoder) Feed(ev Event) (Contact, bool) {
	switch ev.Type {
	case EV_SYN:
		return d.sync(ev)
	case EV_KEY:
		if ev.Code == BTN_TOUCH && !d.multiTouch {
			d.down = ev.Value != 0
		}
	case EV_ABS:
		d.abs(ev)
	}
	return Contact{}, false
}

func (d *Decoder) abs(ev Event) {
	if ev.Code >= ABS_MT_SLOT {
		d.multiTouch = true
	}
	switch ev.Code {
	case ABS_MT_SLOT:
		d.slot = ev.Value
	case ABS_MT_TRACKING_ID:
		if d.slot == 0 {
			d.down = ev.Value >= 0
		}
	case ABS_MT_POSITION_X:
		if d.slot == 0 {
			d.rawX = ev.Value
			d.moved = true
		}
	case ABS_MT_POSITION_Y:
		if d.slot == 0 {
			d.rawY = ev.Value
			d.moved = true
		}
	case ABS_X:
		if !d.multiTouch {
			d.rawX = ev.Value
			d.moved = true
		}
	case ABS_Y:
		if !d.multiTouch {
			d.rawY = ev.Value
			d.moved = true
		}
	}
}

func (d *Decoder) sync(ev Event) (Contact, bool) {
	switch ev.Code {
	case SYN_DROPPED:
		d.dropping = true
		return Contact{}, false
	case SYN_REPORT:
	default:
		return Contact{}, false
	}
	if d.dropping {
		d.dropping = false
		d.moved = false
		return Contact{}, false
	}

	c := Contact{
		X:      d.mapping.scale(d.rawX, d.mapping.X, d.mapping.ViewWidth),
		Y:      d.mapping.scale(d.rawY, d.mapping.Y, d.mapping.ViewHeight),
		TimeMs: ev.TimeMs(),
	}
	moved := d.moved
	d.moved = false

	switch {
	case d.down && !d.wasDown:
		c.Phase = PhaseBegin
	case d.down && moved:
		c.Phase = PhaseMove
	case !d.down && d.wasDown:
		c.Phase = PhaseEnd
	default:
		return Contact{}, false
	}
	d.wasDown = d.down
	return c, true
}
