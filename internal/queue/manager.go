package queue

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/config"
)

// Manager is a strict FIFO queue of generation requests with an at-most-one
// in-flight guarantee. The waiting list and the processing flag are the only
// cross-goroutine shared state in the pipeline; every method is safe to call
// from arbitrary goroutines. Jobs never mutate the queue themselves: only the
// dispatcher claims and finishes entries.
type Manager struct {
	mu         sync.Mutex
	entries    []*Request
	processing bool
	current    *Request
	logger     *logrus.Logger
}

// NewManager creates a queue manager
func NewManager() *Manager {
	return &Manager{
		entries: make([]*Request, 0),
		logger:  config.NewLogger(),
	}
}

// Enqueue appends a request and returns its 1-indexed position from the
// head. Position 1 while the queue is idle means the request runs next.
func (m *Manager) Enqueue(req *Request) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, req)
	position := len(m.entries)

	m.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"user":       req.UserName,
		"batch":      req.BatchCount,
		"mode":       req.Mode,
		"position":   position,
	}).Info("Request enqueued")

	return position
}

// PositionOf returns the 1-indexed position of the requester's first waiting
// entry, or 0 when the requester has nothing waiting. A running request is
// not waiting; callers disambiguate against Status separately.
func (m *Manager) PositionOf(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, req := range m.entries {
		if req.UserID == userID {
			return i + 1
		}
	}
	return 0
}

// Cancel removes every waiting entry belonging to the requester and returns
// the removed count. The in-flight entry is never touched; inProgress is true
// when nothing was removed but the requester's job is currently running.
func (m *Manager) Cancel(userID string) (removed int, inProgress bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	for _, req := range m.entries {
		if req.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, req)
	}
	m.entries = kept

	if removed == 0 && m.processing && m.current != nil && m.current.UserID == userID {
		inProgress = true
	}

	if removed > 0 {
		m.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"removed": removed,
		}).Info("Requests cancelled")
	}

	return removed, inProgress
}

// ClaimNext atomically pops the head and marks the queue processing. It
// returns nil when the queue is empty or a job is already in flight.
func (m *Manager) ClaimNext() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.processing || len(m.entries) == 0 {
		return nil
	}

	req := m.entries[0]
	m.entries = m.entries[1:]
	m.processing = true
	m.current = req

	return req
}

// Finish returns the queue to idle after the claimed job reached a terminal
// state
func (m *Manager) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processing = false
	m.current = nil
}

// Status reports the in-flight entry and waiting depth
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		Processing: m.processing,
		Waiting:    len(m.entries),
	}
	if m.processing && m.current != nil {
		st.CurrentUser = m.current.UserName
		st.CurrentBatch = m.current.BatchCount
		st.CurrentMode = m.current.Mode
	}
	return st
}

// Depth returns the number of waiting entries
func (m *Manager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
