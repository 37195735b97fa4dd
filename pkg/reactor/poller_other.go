//go:build !linux && !darwin && !freebsd

package reactor

func newPoller() (poller, error) {
	return nil, ErrUnsupported
}
