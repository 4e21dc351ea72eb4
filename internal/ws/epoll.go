//go:build linux

package ws

import (
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// initialEventBuf is the starting size of the reusable epoll event buffer.
// The buffer doubles whenever a wait fills it completely.
const initialEventBuf = 128

// Epoll multiplexes read readiness for all relay connections over one kernel
// epoll instance, so the server runs a fixed number of reader goroutines
// instead of one per connection.
type Epoll struct {
	fd    int
	mu    sync.RWMutex
	conns map[int]net.Conn // fd -> conn

	events []unix.EpollEvent // reused across Wait calls
}

// NewEpoll creates the epoll instance.
func NewEpoll() (*Epoll, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &Epoll{
		fd:     fd,
		conns:  make(map[int]net.Conn),
		events: make([]unix.EpollEvent, initialEventBuf),
	}, nil
}

// Add registers a connection for read and hangup notifications.
func (e *Epoll) Add(conn net.Conn) error {
	fd := socketFD(conn)
	err := unix.EpollCtl(e.fd, syscall.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLHUP,
		Fd:     int32(fd),
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.conns[fd] = conn
	e.mu.Unlock()
	return nil
}

// Remove drops a connection from the interest list.
func (e *Epoll) Remove(conn net.Conn) error {
	fd := socketFD(conn)
	if err := unix.EpollCtl(e.fd, syscall.EPOLL_CTL_DEL, fd, nil); err != nil {
		return err
	}

	e.mu.Lock()
	delete(e.conns, fd)
	e.mu.Unlock()
	return nil
}

// Wait blocks until at least one registered connection is readable and
// returns those connections. Descriptors removed between the kernel wakeup
// and the map lookup are skipped. EINTR restarts the wait.
func (e *Epoll) Wait() ([]net.Conn, error) {
	var n int
	for {
		var err error
		n, err = unix.EpollWait(e.fd, e.events, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}

	e.mu.RLock()
	out := make([]net.Conn, 0, n)
	for i := 0; i < n; i++ {
		if conn, ok := e.conns[int(e.events[i].Fd)]; ok {
			out = append(out, conn)
		}
	}
	e.mu.RUnlock()

	// A full buffer means there may be more ready descriptors than we can
	// report per wakeup; grow for the next round.
	if n == len(e.events) {
		e.events = make([]unix.EpollEvent, len(e.events)*2)
	}
	return out, nil
}

// Close releases the epoll descriptor.
func (e *Epoll) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conns = nil
	return unix.Close(e.fd)
}

// socketFD pulls the raw descriptor out of a net.Conn via SyscallConn, which
// does not duplicate the fd the way File() would.
func socketFD(conn net.Conn) int {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1
	}
	fd := -1
	_ = raw.Control(func(sfd uintptr) {
		fd = int(sfd)
	})
	return fd
}
