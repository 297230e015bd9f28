//go:build linux

package evdev

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// absInfo mirrors struct input_absinfo.
type absInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// eviocgabs builds the EVIOCGABS(code) request: _IOR('E', 0x40 + code, struct input_absinfo).
func eviocgabs(code uint16) uintptr {
	const (
		iocRead    = 2
		dirShift   = 30
		sizeShift  = 16
		typeShift  = 8
		absInfoLen = uintptr(unsafe.Sizeof(absInfo{}))
	)
	return iocRead<<dirShift | absInfoLen<<sizeShift | uintptr('E')<<typeShift | uintptr(0x40+code)
}

// QueryAxis returns the raw range of an absolute axis of an open device.
func QueryAxis(f *os.File, code uint16) (AxisRange, error) {
	var info absInfo
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), eviocgabs(code), uintptr(unsafe.Pointer(&info)))
	if errno != 0 {
		return AxisRange{}, fmt.Errorf("EVIOCGABS(%#x) on %s: %w", code, f.Name(), errno)
	}
	return AxisRange{Min: info.Minimum, Max: info.Maximum}, nil
}

// QueryMapping reads the X/Y ranges of a touch device. Multi-touch axes
// are preferred; legacy ABS_X/ABS_Y are used when the device has none.
func QueryMapping(f *os.File, viewWidth, viewHeight float64) (Mapping, error) {
	m := Mapping{ViewWidth: viewWidth, ViewHeight: viewHeight}

	x, errX := QueryAxis(f, ABS_MT_POSITION_X)
	y, errY := QueryAxis(f, ABS_MT_POSITION_Y)
	if errX == nil && errY == nil && x.Span() > 0 && y.Span() > 0 {
		m.X, m.Y = x, y
		return m, nil
	}

	x, err := QueryAxis(f, ABS_X)
	if err != nil {
		return Mapping{}, err
	}
	y, err = QueryAxis(f, ABS_Y)
	if err != nil {
		return Mapping{}, err
	}
	m.X, m.Y = x, y
	return m, nil
}

// DeviceEvent is a raw event tagged with the device it came from.
type DeviceEvent struct {
	Device string
	Event  Event
}

// pollTimeoutMs bounds each epoll_wait so cancellation is noticed.
const pollTimeoutMs = 250

// ReadDevices multiplexes events from all files with epoll until ctx is
// canceled or a device fails. It returns nil on cancellation.
func ReadDevices(ctx context.Context, files []*os.File, out chan<- DeviceEvent) error {
	if len(files) == 0 {
		return errors.New("no input devices provided")
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	fdToFile := make(map[int32]*os.File, len(files))
	for _, f := range files {
		fd := int(f.Fd())
		fdToFile[int32(fd)] = f

		event := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			return fmt.Errorf("epoll_ctl_add %s: %w", f.Name(), err)
		}
	}

	const maxEvents = 32
	ready := make([]unix.EpollEvent, maxEvents)
	buf := make([]byte, EventSize*64)
	var decoded []Event

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := unix.EpollWait(epfd, ready, pollTimeoutMs)
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			f := fdToFile[ready[i].Fd]
			if ready[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				return fmt.Errorf("device error/hangup: %s", f.Name())
			}

			nr, err := f.Read(buf)
			if err != nil {
				return fmt.Errorf("read from %s: %w", f.Name(), err)
			}

			decoded = decodeEvents(buf[:nr], decoded[:0])
			for _, ev := range decoded {
				select {
				case out <- DeviceEvent{Device: f.Name(), Event: ev}:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}
