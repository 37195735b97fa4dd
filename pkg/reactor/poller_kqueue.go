//go:build darwin || freebsd

package reactor

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// wakeupIdent identifies the EVFILT_USER event used for wakeups. User events
// live in their own filter namespace, so it cannot collide with a socket.
const wakeupIdent = 0

// kqueuePoller is a kqueue with EVFILT_READ registrations and one EVFILT_USER
// event for wakeups.
type kqueuePoller struct {
	kq     int
	events []unix.Kevent_t
}

func newPoller() (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue: %w", err)
	}
	unix.CloseOnExec(kq)

	var ev unix.Kevent_t
	unix.SetKevent(&ev, wakeupIdent, unix.EVFILT_USER, unix.EV_ADD|unix.EV_CLEAR)
	if _, err := unix.Kevent(kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		_ = unix.Close(kq)
		return nil, fmt.Errorf("kevent wakeup: %w", err)
	}

	return &kqueuePoller{kq: kq}, nil
}

func (p *kqueuePoller) add(fd int, interest Interest) error {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, unix.EVFILT_READ, unix.EV_ADD)
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil)
	return err
}

func (p *kqueuePoller) del(fd int) error {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, unix.EVFILT_READ, unix.EV_DELETE)
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil)
	if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EBADF) {
		return nil
	}
	return err
}

func (p *kqueuePoller) wait(out []readyEvent) (int, error) {
	if cap(p.events) < len(out) {
		p.events = make([]unix.Kevent_t, len(out))
	}
	events := p.events[:len(out)]

	n, err := unix.Kevent(p.kq, nil, events, nil)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, err
	}

	for i := 0; i < n; i++ {
		if events[i].Filter == unix.EVFILT_USER {
			out[i] = readyEvent{wakeup: true}
			continue
		}
		out[i] = readyEvent{fd: int(events[i].Ident)}
	}
	return n, nil
}

func (p *kqueuePoller) wakeup() error {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, wakeupIdent, unix.EVFILT_USER, 0)
	ev.Fflags = unix.NOTE_TRIGGER
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil)
	return err
}

// drainWakeup is a no-op: EV_CLEAR resets the user event once delivered.
func (p *kqueuePoller) drainWakeup() {}

func (p *kqueuePoller) close() error {
	return unix.Close(p.kq)
}
