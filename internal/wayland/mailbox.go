// SPDX-License-Identifier: Unlicense OR MIT

//go:build linux

package wayland

import (
	"fmt"
	"sync"

	syscall "golang.org/x/sys/unix"
)

// mailbox queues functions for the event loop and wakes it through a
// non-blocking pipe. Posting is safe from any goroutine, also after and
// during close.
type mailbox struct {
	mu          sync.Mutex
	read, write int
	closed      bool
	fns         []func()
}

func newMailbox() (*mailbox, error) {
	pipe := make([]int, 2)
	if err := syscall.Pipe2(pipe, syscall.O_NONBLOCK|syscall.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("wayland: failed to create pipe: %w", err)
	}
	return &mailbox{read: pipe[0], write: pipe[1]}, nil
}

// fd is the descriptor that polls readable after a wake.
func (m *mailbox) fd() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read
}

// post queues fn and wakes the loop. It reports false, dropping fn, once
// the mailbox is closed.
func (m *mailbox) post(fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.fns = append(m.fns, fn)
	return m.wakeLocked() == nil
}

// wake wakes the loop without queueing anything. It does nothing once the
// mailbox is closed.
func (m *mailbox) wake() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	return m.wakeLocked()
}

func (m *mailbox) wakeLocked() error {
	// A full pipe already wakes the loop.
	if _, err := syscall.Write(m.write, []byte{1}); err != nil && err != syscall.EAGAIN {
		return fmt.Errorf("wayland: write to notify pipe: %w", err)
	}
	return nil
}

// take returns the queued functions in posting order and empties the
// queue.
func (m *mailbox) take() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	fns := m.fns
	m.fns = nil
	return fns
}

// drain consumes pending wakes.
func (m *mailbox) drain() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	// Plenty of room for a backlog of notifications.
	var buf [100]byte
	for {
		_, err := syscall.Read(m.read, buf[:])
		switch err {
		case nil:
		case syscall.EAGAIN:
			return nil
		default:
			return fmt.Errorf("wayland: read from notify pipe: %w", err)
		}
	}
}

// close closes the pipe and drops queued functions. Closing twice is a
// no-op.
func (m *mailbox) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.fns = nil
	err := syscall.Close(m.write)
	if cerr := syscall.Close(m.read); err == nil {
		err = cerr
	}
	m.read, m.write = -1, -1
	return err
}
