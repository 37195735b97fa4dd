//go:build linux || darwin || freebsd

package reactor

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Listen opens a non-blocking IPv4 TCP listening socket on all interfaces.
// Port 0 asks the kernel for an ephemeral port; the bound port is returned.
func Listen(port, backlog int) (fd int, bound int, err error) {
	syscall.ForkLock.RLock()
	fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err == nil {
		unix.CloseOnExec(fd)
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return -1, 0, fmt.Errorf("socket: %w", err)
	}

	fail := func(op string, err error) (int, int, error) {
		_ = unix.Close(fd)
		return -1, 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail("setsockopt SO_REUSEADDR", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return fail("set nonblock", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		return fail(fmt.Sprintf("bind port %d", port), err)
	}
	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return fail("listen", err)
	}

	sa, err := unix.Getsockname(fd)
	if err != nil {
		return fail("getsockname", err)
	}
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		bound = in4.Port
	}

	return fd, bound, nil
}

// Accept takes one pending connection off a listening socket. The returned
// socket is non-blocking with TCP_NODELAY set. When no connection is pending
// the error satisfies IsWouldBlock.
func Accept(listenFD int) (fd int, remote string, err error) {
	for {
		syscall.ForkLock.RLock()
		var sa unix.Sockaddr
		fd, sa, err = unix.Accept(listenFD)
		if err == nil {
			unix.CloseOnExec(fd)
		}
		syscall.ForkLock.RUnlock()

		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return -1, "", err
		}

		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fd)
			return -1, "", fmt.Errorf("set nonblock: %w", err)
		}
		// Best effort: small replies should not wait on Nagle.
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

		return fd, sockaddrString(sa), nil
	}
}

// Read performs one non-blocking read. n == 0 with a nil error means the peer
// closed its side.
func Read(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// WriteAll writes every byte of buf to a non-blocking socket, waiting for
// writability whenever the kernel buffer is full. A positive timeout bounds
// the whole call; on expiry ErrWriteTimeout is returned.
func WriteAll(fd int, buf []byte, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for len(buf) > 0 {
		n, err := unix.Write(fd, buf)
		if n > 0 {
			buf = buf[n:]
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, unix.EINTR):
			continue
		case IsWouldBlock(err):
			if err := waitWritable(fd, deadline); err != nil {
				return err
			}
		default:
			return err
		}
	}
	return nil
}

func waitWritable(fd int, deadline time.Time) error {
	for {
		ms := -1
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return ErrWriteTimeout
			}
			ms = int(remaining / time.Millisecond)
			if ms == 0 {
				ms = 1
			}
		}

		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return err
		}
		if n > 0 {
			// POLLERR/POLLHUP surface through the next write.
			return nil
		}
	}
}

// CloseFD closes a socket returned by Listen or Accept.
func CloseFD(fd int) error {
	return unix.Close(fd)
}

// Shutdown shuts down both directions of a connected socket without closing
// the descriptor. Blocked writers and pollers on fd return promptly.
func Shutdown(fd int) error {
	return unix.Shutdown(fd, unix.SHUT_RDWR)
}

// IsWouldBlock reports whether err means the operation would have blocked.
func IsWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

// IsTemporary reports whether an accept error is transient: the listener is
// still healthy and later accepts may succeed.
func IsTemporary(err error) bool {
	if IsWouldBlock(err) {
		return true
	}
	for _, errno := range []unix.Errno{
		unix.EINTR,
		unix.ECONNABORTED,
		unix.ECONNRESET,
		unix.EMFILE,
		unix.ENFILE,
		unix.ENOBUFS,
		unix.ENOMEM,
		unix.EPROTO,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	default:
		return "unknown"
	}
}
