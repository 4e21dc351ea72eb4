//go:build !linux

package ws

import (
	"net"
	"sync"
)

// Epoll is the portable stand-in for the Linux epoll path: one watcher
// goroutine per connection feeding a ready channel. It exists so the relay
// can be developed and tested on macOS and Windows; production runs on the
// Linux implementation.
type Epoll struct {
	mu    sync.RWMutex
	conns map[net.Conn]struct{}
	ready chan net.Conn
	done  chan struct{}
}

// NewEpoll creates the fallback instance.
func NewEpoll() (*Epoll, error) {
	return &Epoll{
		conns: make(map[net.Conn]struct{}),
		ready: make(chan net.Conn, 128),
		done:  make(chan struct{}),
	}, nil
}

// Add registers a connection and starts its watcher goroutine.
func (e *Epoll) Add(conn net.Conn) error {
	e.mu.Lock()
	e.conns[conn] = struct{}{}
	e.mu.Unlock()

	go e.watch(conn)
	return nil
}

// watch blocks on a one-byte read to detect incoming data and signals the
// connection as ready. The consumed byte is tolerated by the fallback read
// path; the Linux implementation never consumes anything. A read error still
// signals readiness once so the server notices the closed connection.
func (e *Epoll) watch(conn net.Conn) {
	buf := make([]byte, 1)
	for {
		_, err := conn.Read(buf)
		select {
		case e.ready <- conn:
		case <-e.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// Remove unregisters a connection. Its watcher exits on the next read error.
func (e *Epoll) Remove(conn net.Conn) error {
	e.mu.Lock()
	delete(e.conns, conn)
	e.mu.Unlock()
	return nil
}

// Wait blocks until at least one connection is ready, then drains whatever
// else is ready without blocking.
func (e *Epoll) Wait() ([]net.Conn, error) {
	first, ok := <-e.ready
	if !ok {
		return nil, net.ErrClosed
	}

	conns := []net.Conn{first}
	for {
		select {
		case conn := <-e.ready:
			conns = append(conns, conn)
		default:
			return conns, nil
		}
	}
}

// Close stops all watchers.
func (e *Epoll) Close() error {
	close(e.done)
	e.mu.Lock()
	e.conns = nil
	e.mu.Unlock()
	return nil
}

// socketFD has no meaning without epoll.
func socketFD(conn net.Conn) int {
	return -1
}
