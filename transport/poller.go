package transport

import (
	"encoding/binary"
	"syscall"

	"go.uber.org/multierr"
)

// Poller wraps an epoll descriptor plus an eventfd used to interrupt an
// otherwise indefinite wait.
type Poller struct {
	fd     int
	wakeFd int
}

func MakePoller() (*Poller, error) {
	var (
		poller Poller
		err    error
	)

	// Open an epoll fd
	// https://man7.org/linux/man-pages/man2/epoll_create.2.html
	poller.fd, err = syscall.EpollCreate1(0)
	if err != nil {
		return nil, err
	}

	// Create an eventfd that Wake can bump from any goroutine
	// https://man7.org/linux/man-pages/man2/eventfd.2.html
	r0, _, e0 := syscall.Syscall(syscall.SYS_EVENTFD2, 0, 0, 0)
	if e0 != 0 {
		_ = syscall.Close(poller.fd)
		return nil, e0
	}
	poller.wakeFd = int(r0)

	// Read interest only. An eventfd is almost always writable, so
	// registering for writes would have every wait return immediately.
	if err := poller.Add(poller.wakeFd, syscall.EPOLLIN); err != nil {
		_ = syscall.Close(poller.wakeFd)
		_ = syscall.Close(poller.fd)
		return nil, err
	}

	return &poller, nil
}

// Add registers fd with the given interest mask.
// https://man7.org/linux/man-pages/man2/epoll_ctl.2.html
func (p *Poller) Add(fd int, events uint32) error {
	event := &syscall.EpollEvent{
		Fd:     int32(fd),
		Events: events,
	}

	return syscall.EpollCtl(p.fd, syscall.EPOLL_CTL_ADD, fd, event)
}

// Delete removes fd from the interest list. Deleting a descriptor that
// was never registered reports an error; callers decide whether that
// matters.
func (p *Poller) Delete(fd int) error {
	return syscall.EpollCtl(p.fd, syscall.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks until at least one registered descriptor is ready, fills
// events and returns how many entries are valid. There is no timeout;
// use Wake to interrupt a wait. Interrupted system calls are retried
// here so callers never see EINTR.
func (p *Poller) Wait(events []syscall.EpollEvent) (int, error) {
	for {
		n, err := syscall.EpollWait(p.fd, events, -1)
		if err == syscall.EINTR {
			continue
		}

		return n, err
	}
}

// Wake makes the current (or next) Wait return by bumping the eventfd.
// It is safe to call from any goroutine.
func (p *Poller) Wake() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)

	_, err := syscall.Write(p.wakeFd, buf[:])
	return err
}

// drainWake consumes the eventfd counter so the next Wait blocks again.
func (p *Poller) drainWake() {
	var buf [8]byte
	_, _ = syscall.Read(p.wakeFd, buf[:])
}

func (p *Poller) Close() error {
	return multierr.Append(
		syscall.Close(p.wakeFd),
		syscall.Close(p.fd),
	)
}
