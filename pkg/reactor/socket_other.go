//go:build !linux && !darwin && !freebsd

package reactor

import "time"

func Listen(port, backlog int) (int, int, error) { return -1, 0, ErrUnsupported }

func Accept(listenFD int) (int, string, error) { return -1, "", ErrUnsupported }

func Read(fd int, buf []byte) (int, error) { return 0, ErrUnsupported }

func WriteAll(fd int, buf []byte, timeout time.Duration) error { return ErrUnsupported }

func CloseFD(fd int) error { return ErrUnsupported }

func Shutdown(fd int) error { return ErrUnsupported }

func IsWouldBlock(err error) bool { return false }

func IsTemporary(err error) bool { return false }
