//go:build linux

package reactor

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// epollPoller is a level-triggered epoll set plus an eventfd used for wakeups.
type epollPoller struct {
	epfd   int
	wakefd int
	events []unix.EpollEvent
}

func newPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll_ctl wakeup: %w", err)
	}

	return &epollPoller{epfd: epfd, wakefd: wakefd}, nil
}

func (p *epollPoller) add(fd int, interest Interest) error {
	events := uint32(unix.EPOLLIN)
	if interest&InterestRead != 0 {
		events |= unix.EPOLLRDHUP
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) del(fd int) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EBADF) {
		return nil
	}
	return err
}

func (p *epollPoller) wait(out []readyEvent) (int, error) {
	if cap(p.events) < len(out) {
		p.events = make([]unix.EpollEvent, len(out))
	}
	events := p.events[:len(out)]

	n, err := unix.EpollWait(p.epfd, events, -1)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, err
	}

	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		out[i] = readyEvent{fd: fd, wakeup: fd == p.wakefd}
	}
	return n, nil
}

func (p *epollPoller) wakeup() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(p.wakefd, buf[:])
	if errors.Is(err, unix.EAGAIN) {
		// Counter saturated: a wakeup is already pending.
		return nil
	}
	return err
}

func (p *epollPoller) drainWakeup() {
	var buf [8]byte
	_, _ = unix.Read(p.wakefd, buf[:])
}

func (p *epollPoller) close() error {
	err1 := unix.Close(p.wakefd)
	err2 := unix.Close(p.epfd)
	return errors.Join(err1, err2)
}
