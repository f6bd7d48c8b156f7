package interfaces

import (
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/queue"
)

// QueueManager FIFO generation queue contract
type QueueManager interface {
	// Enqueue appends a request and returns its 1-indexed position.
	Enqueue(req *queue.Request) int

	// PositionOf returns the requester's waiting position, 0 when absent.
	PositionOf(userID string) int

	// Cancel removes the requester's waiting entries; inProgress reports
	// a running, non-cancellable job.
	Cancel(userID string) (removed int, inProgress bool)

	// ClaimNext atomically pops the head and marks processing.
	ClaimNext() *queue.Request

	// Finish returns the queue to idle.
	Finish()

	// Status reports the in-flight entry and waiting depth.
	Status() queue.Status

	// Depth returns the number of waiting entries.
	Depth() int
}
